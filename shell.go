package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"smj-library/internal/config"
	"smj-library/internal/library"
	"smj-library/internal/logging"
	"smj-library/internal/metrics"
	"smj-library/internal/model"
	"smj-library/internal/protocol"
	"smj-library/internal/search"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Search the library interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.MetricsAddr != "" {
			stop, err := serveMetrics(cfg.MetricsAddr)
			if err != nil {
				return err
			}
			defer stop()
		}
		return withLibrary(ctx, func(l *library.Library) error {
			return interactiveLoop(ctx, l, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

func init() {
	shellCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while the shell runs")
	_ = viper.BindPFlag(config.KeyMetricsAddr, shellCmd.Flags().Lookup("metrics-addr"))
}

// serveMetrics exposes /metrics on addr and returns a function that shuts
// the server down.
func serveMetrics(addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server stopped", zap.Error(err))
		}
	}()
	logging.L().Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

const shellHelp = `Enter an SMJ7-style query, for example "@beatles,#abbey road".
  :COMMAND ARGS...   run a music database command, e.g. :list album artist "The Beatles"
  :loglevel LEVEL    change the log level (debug, info, warn, error)
  ?                  show the query syntax
Press Ctrl-D to quit.`

// interactiveLoop reads queries from in until EOF. After a search with
// several results the next line picks one of them by number to show its
// details.
func interactiveLoop(ctx context.Context, l *library.Library, in io.Reader, out io.Writer) error {
	st, err := l.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, shellHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "\n[SMJ7 | %s files] > ", humanize.Comma(int64(st.Tracks)))
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye.")
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "":
			continue
		case input == "?":
			fmt.Fprintln(out, search.SyntaxGuide)
			continue
		case strings.HasPrefix(input, ":"):
			runCommand(ctx, l, out, input[1:])
			continue
		}

		res, err := l.Search(ctx, search.ParseSMJ7(input), library.SearchOptions{})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		switch len(res.Tracks) {
		case 0:
			fmt.Fprintln(out, "No results found.")
			continue
		case 1:
			fmt.Fprint(out, protocol.TrackPairs(res.Tracks[0]).String())
			continue
		}

		printTracks(out, res.Tracks)
		fmt.Fprint(out, "\nEnter # to show a track, or press enter to search again\n[Track #] > ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye.")
			return scanner.Err()
		}
		showTrack(out, strings.TrimSpace(scanner.Text()), res.Tracks)
	}
}

func showTrack(out io.Writer, choice string, tracks []model.Track) {
	if choice == "" {
		return
	}
	i, err := strconv.Atoi(choice)
	if err != nil || i < 1 || i > len(tracks) {
		fmt.Fprintf(out, "Enter value from 1 to %d, try again.\n", len(tracks))
		return
	}
	fmt.Fprint(out, protocol.TrackPairs(tracks[i-1]).String())
}

func runCommand(ctx context.Context, l *library.Library, out io.Writer, line string) {
	args, err := splitArgs(line)
	if err != nil || len(args) == 0 {
		fmt.Fprintln(out, "Error: could not parse command")
		return
	}
	if args[0] == "loglevel" && len(args) == 2 {
		logging.SetLevel(args[1])
		fmt.Fprintln(out, "OK")
		return
	}
	ans, err := l.Execute(ctx, args[0], args[1:]...)
	if err != nil {
		fmt.Fprintf(out, "ACK %v\n", err)
		return
	}
	fmt.Fprint(out, ans.String())
	fmt.Fprintln(out, "OK")
}

// splitArgs splits a command line on spaces, keeping double-quoted words
// together.
func splitArgs(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(line)))
	r.Comma = ' '
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out, nil
}
