package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/dictionary"
	"github.com/japaniel/jpdict/pkg/engine"
)

func (a *app) importCmd() *cobra.Command {
	var (
		kind   string
		latest bool
		common bool
	)
	cmd := &cobra.Command{
		Use:   "import [path|url]",
		Short: "Import a dictionary archive",
		Long: "Import a Yomitan zip, a Yomichan audio tar or a jmdict-simplified JSON file.\n" +
			"With --latest-jmdict the newest English JMdict release is downloaded instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			ctx := cmd.Context()
			loader := archive.Loader{}

			var src string
			switch {
			case latest && len(args) > 0:
				return errors.New("--latest-jmdict takes no path")
			case latest:
				url, err := loader.LatestJMdictURL(ctx, common)
				if err != nil {
					return fmt.Errorf("find latest JMdict: %w", err)
				}
				src = url
				if kind == "" {
					kind = string(dictionary.KindJmdict)
				}
			case len(args) == 1:
				src = args[0]
			default:
				return errors.New("a path or url is required")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Loading %s...\n", src)
			data, err := loader.Load(ctx, src)
			if err != nil {
				return err
			}

			var im *engine.Import
			if kind != "" {
				k, err := dictionary.ParseKind(kind)
				if err != nil {
					return err
				}
				im, err = e.ImportDictionaryAs(ctx, k, data)
				if err != nil {
					return err
				}
			} else if im, err = e.ImportDictionary(ctx, data); err != nil {
				return err
			}
			return reportImport(cmd, im)
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", "", "skip detection and import as yomitan, yomichan_audio or jmdict")
	cmd.Flags().BoolVar(&latest, "latest-jmdict", false, "download the latest jmdict-simplified release")
	cmd.Flags().BoolVar(&common, "common", false, "with --latest-jmdict, fetch the common-words subset")
	return cmd
}

func reportImport(cmd *cobra.Command, im *engine.Import) error {
	out, progress := cmd.OutOrStdout(), cmd.ErrOrStderr()
	for ev := range im.Events() {
		switch ev.Type {
		case engine.EventDeterminedKind:
			fmt.Fprintf(out, "Detected %s archive\n", ev.Kind)
		case engine.EventParsedMeta:
			fmt.Fprintf(out, "Importing %s\n", ev.Meta.Name)
		case engine.EventProgress:
			fmt.Fprintf(progress, "\r%3.0f%%", ev.Progress*100)
		case engine.EventDone:
			fmt.Fprintf(progress, "\n")
			fmt.Fprintf(out, "Imported %s as dictionary %d\n", ev.Meta.Name, ev.Dictionary)
		case engine.EventFailed:
			fmt.Fprintf(progress, "\n")
			return ev.Err
		}
	}
	return nil
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a dictionary and its records",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := e.RemoveDictionary(cmd.Context(), dictionary.DictionaryID(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed dictionary %d\n", id)
			return nil
		}),
	}
}

func (a *app) dictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dicts",
		Short: "List dictionaries in lookup order",
		Args:  cobra.NoArgs,
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			pid, err := a.profileID(e)
			if err != nil {
				return err
			}
			p, _ := e.Snapshot().Profile(pid)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tNAME\tVERSION\tENABLED\tSORTING")
			for _, d := range e.Dictionaries() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.Meta.Kind, d.Meta.Name, d.Meta.Version,
					mark(p.IsEnabled(d.ID)), mark(p.SortingDictionary != nil && *p.SortingDictionary == d.ID))
			}
			return w.Flush()
		}),
	}
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}

func (a *app) enableCmd(enable bool) *cobra.Command {
	use, short := "disable <id>", "Stop using a dictionary in the profile"
	if enable {
		use, short = "enable <id>", "Use a dictionary in the profile"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			pid, err := a.profileID(e)
			if err != nil {
				return err
			}
			if enable {
				return e.EnableDictionary(cmd.Context(), pid, dictionary.DictionaryID(id))
			}
			return e.DisableDictionary(cmd.Context(), pid, dictionary.DictionaryID(id))
		}),
	}
}

func (a *app) sortDictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sort-dict <id|none>",
		Short: "Rank lookups by a frequency dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			pid, err := a.profileID(e)
			if err != nil {
				return err
			}
			var dict *dictionary.DictionaryID
			if args[0] != "none" {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				d := dictionary.DictionaryID(id)
				dict = &d
			}
			return e.SetSortingDictionary(cmd.Context(), pid, dict)
		}),
	}
}

func (a *app) swapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swap <a> <b>",
		Short: "Swap the lookup order of two dictionaries",
		Args:  cobra.ExactArgs(2),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			x, err := parseID(args[0])
			if err != nil {
				return err
			}
			y, err := parseID(args[1])
			if err != nil {
				return err
			}
			return e.SwapDictionaryPositions(cmd.Context(), dictionary.DictionaryID(x), dictionary.DictionaryID(y))
		}),
	}
}
