package main

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/japaniel/jpdict/pkg/archive"
	"github.com/japaniel/jpdict/pkg/engine"
	"github.com/japaniel/jpdict/pkg/textsrc"
)

// maxPageSize caps pages fetched by scan.
const maxPageSize = 10 * 1024 * 1024

// cursorArg converts an optional character offset into a byte offset of text.
func cursorArg(text string, args []string) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 || n >= utf8.RuneCountInString(text) {
		return 0, fmt.Errorf("cursor %q is not a character offset in %q", args[1], text)
	}
	i := 0
	for byteOff := range text {
		if i == n {
			return byteOff, nil
		}
		i++
	}
	return len(text), nil
}

func (a *app) deinflectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deinflect <text> [cursor]",
		Short: "Show the lemma candidates at a character offset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			cursor, err := cursorArg(args[0], args)
			if err != nil {
				return err
			}
			for _, c := range e.Deinflect(args[0], cursor) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Lemma, args[0][c.Span.Start:c.Span.End])
			}
			return nil
		}),
	}
}

func (a *app) lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <text> [cursor]",
		Short: "Look up the word at a character offset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			cursor, err := cursorArg(args[0], args)
			if err != nil {
				return err
			}
			pid, err := a.profileID(e)
			if err != nil {
				return err
			}
			entries, err := e.Lookup(cmd.Context(), pid, args[0], cursor)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results")
				return nil
			}
			printEntries(cmd.OutOrStdout(), e.Snapshot(), args[0], entries)
			return nil
		}),
	}
}

func (a *app) lemmaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lemma <lemma>",
		Short: "Look up an exact dictionary form",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			pid, err := a.profileID(e)
			if err != nil {
				return err
			}
			entries, err := e.LookupLemma(cmd.Context(), pid, args[0])
			if len(entries) == 0 && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No results")
			}
			printEntries(cmd.OutOrStdout(), e.Snapshot(), args[0], entries)
			return err
		}),
	}
}

func (a *app) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <html-file|url>",
		Short: "Extract an article and print the first hit for each word",
		Args:  cobra.ExactArgs(1),
		RunE: a.withEngine(func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			ctx := cmd.Context()
			src := args[0]
			page, err := archive.Loader{MaxBytes: maxPageSize}.Load(ctx, src)
			if err != nil {
				return err
			}
			pageURL := ""
			if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
				pageURL = src
			}
			article, err := textsrc.Extract(bytes.NewReader(page), pageURL)
			if err != nil {
				return fmt.Errorf("failed to extract article: %w", err)
			}
			pid, err := a.profileID(e)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title: %s\n", article.Title)
			snap := e.Snapshot()
			var hits int
			for _, s := range a.analyzer.AnalyzeDocument(article.Text) {
				covered := 0
				for _, tok := range s.Tokens {
					if tok.Start < covered || tok.PrimaryPOS == "記号" {
						continue
					}
					entries, err := e.Lookup(ctx, pid, s.Text, tok.Start)
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						continue
					}
					first := entries[0]
					covered = first.SpanBytes.End
					printEntries(out, snap, s.Text, entries[:1])
					hits++
				}
			}
			fmt.Fprintf(out, "Found %d words.\n", hits)
			return nil
		}),
	}
}
