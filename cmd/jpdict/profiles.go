package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/engine"
)

func (a *app) profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			current := e.Snapshot().CurrentProfile
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDICTIONARIES\tCURRENT")
			for _, p := range e.Profiles() {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.ID, p.Name, len(p.EnabledDictionaries), mark(p.ID == current))
			}
			return w.Flush()
		}),
	}
}

func (a *app) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Create, switch and remove profiles",
	}

	var from int64
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			var (
				id  dictionary.ProfileID
				err error
			)
			if from != 0 {
				id, err = e.CopyProfile(cmd.Context(), dictionary.ProfileID(from), args[0])
			} else {
				id, err = e.CreateProfile(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created profile %d\n", id)
			return nil
		}),
	}
	create.Flags().Int64Var(&from, "from", 0, "copy settings and enabled dictionaries from this profile")

	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Make a profile current",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.SetCurrentProfile(cmd.Context(), dictionary.ProfileID(id))
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.RemoveProfile(cmd.Context(), dictionary.ProfileID(id))
		}),
	}

	cmd.AddCommand(create, use, remove)
	return cmd
}
