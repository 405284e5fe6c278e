package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"smj-library/internal/library"
	"smj-library/internal/logging"
	"smj-library/internal/protocol"
	"smj-library/internal/scan"
	"smj-library/internal/search"
	"smj-library/internal/translator"
)

var (
	exactSearch bool
	outputJSON  bool
	showURIs    bool
	showSyntax  bool
	indent      int

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Add new and modified media files, drop vanished ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLibrary(cmd.Context(), func(l *library.Library) error {
				sum, err := scan.Scan(cmd.Context(), l, scan.Options{
					MediaDir:   cfg.MediaDir,
					Extensions: cfg.Scan.Extensions,
					Workers:    cfg.Scan.Workers,
					Logger:     logging.L(),
				})
				if err != nil {
					return err
				}
				if _, err := l.Flush(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexer: indexed %s new or changed files in %.2f seconds (%s unchanged, %s removed, %s failed).\n",
					humanize.Comma(int64(sum.Added)), sum.Took.Seconds(),
					humanize.Comma(int64(sum.Unchanged)),
					humanize.Comma(int64(sum.Removed)),
					humanize.Comma(int64(sum.Failed)))
				return nil
			})
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search [SMJ7 QUERY]",
		Short: "Search the library with an SMJ7-style query",
		Long:  "Search the library with an SMJ7-style query.\n\n" + search.SyntaxGuide,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if showSyntax {
				fmt.Fprintln(out, search.SyntaxGuide)
				return nil
			}
			q := search.ParseSMJ7(strings.Join(args, " "))
			return withLibrary(cmd.Context(), func(l *library.Library) error {
				res, err := l.Search(cmd.Context(), q, library.SearchOptions{Exact: exactSearch})
				if err != nil {
					return err
				}
				if outputJSON {
					s, err := jsonizer(res.Tracks, indent, showURIs)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, s)
					return nil
				}
				if len(res.Tracks) == 0 {
					fmt.Fprintln(out, "No results found.")
					return nil
				}
				printTracks(out, res.Tracks)
				return nil
			})
		},
	}

	browseCmd = &cobra.Command{
		Use:   "browse [URI]",
		Short: "List a directory of the browse tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := translator.RootDirectoryURI
			if len(args) == 1 {
				uri = args[0]
			}
			return withLibrary(cmd.Context(), func(l *library.Library) error {
				refs, err := l.Browse(cmd.Context(), uri)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd, refs)
				}
				printRefs(cmd.OutOrStdout(), refs)
				return nil
			})
		},
	}

	lookupCmd = &cobra.Command{
		Use:   "lookup URI",
		Short: "Show the stored metadata of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd.Context(), func(l *library.Library) error {
				t, ok, err := l.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no track %q", args[0])
				}
				if outputJSON {
					return printJSON(cmd, t)
				}
				fmt.Fprint(cmd.OutOrStdout(), protocol.TrackPairs(t).String())
				return nil
			})
		},
	}

	queryCmd = &cobra.Command{
		Use:   "query COMMAND [TAG VALUE]...",
		Short: "Run a music database command (count, find, list)",
		Example: `  smj query list album artist "The Beatles"
  smj query find albumartist ABBA album Arrival
  smj query count genre Jazz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd.Context(), func(l *library.Library) error {
				ans, err := l.Execute(cmd.Context(), args[0], args[1:]...)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd, ans)
				}
				fmt.Fprint(cmd.OutOrStdout(), ans.String())
				return nil
			})
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete the library database and start over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLibrary(cmd.Context(), func(l *library.Library) error {
				ok, err := l.Clear(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("could not remove %s", l.Path())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", l.Path())
				return nil
			})
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the library and its caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLibrary(cmd.Context(), func(l *library.Library) error {
				st, err := l.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd, st)
				}
				printStats(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, browseCmd, lookupCmd, queryCmd, statsCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "output results in JSON")
		c.Flags().IntVarP(&indent, "indent", "i", 2, "with --json, # of spaces to indent by")
	}
	searchCmd.Flags().BoolVar(&exactSearch, "exact", false, "match whole values instead of substrings")
	searchCmd.Flags().BoolVar(&showURIs, "show-uris", false, "include track URIs in JSON output")
	searchCmd.Flags().BoolVar(&showSyntax, "syntax", false, "show the SMJ7-style syntax guide")
}
