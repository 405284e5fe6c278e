// Package main provides the smj command, a cached media library.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"smj-library/internal/config"
	"smj-library/internal/library"
	"smj-library/internal/logging"
	"smj-library/internal/search"
)

var (
	// Version as provided by the release build.
	Version = ""

	configFile string
	debug      bool

	// cfg is resolved before any subcommand runs.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:           "smj",
		Short:         "Scan, browse and search a local media library",
		SilenceErrors: false,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.Sync()
		},
	}
)

func loadConfig() error {
	v := viper.GetViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if err := config.AddConfigPaths(v); err != nil {
		return err
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	if debug {
		c.Log.Level = "debug"
	}
	if err := logging.Init(c.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		logging.L().Debug("using config file", zap.String("path", used))
	}
	cfg = c
	return nil
}

// openLibrary opens and loads the configured library. Callers Close it.
func openLibrary(ctx context.Context) (*library.Library, error) {
	engine, err := search.NewEngine(cfg.SearchEngine)
	if err != nil {
		return nil, err
	}
	l, err := library.Open(library.Options{
		DataDir:          cfg.DataDir,
		Backend:          cfg.Store,
		Engine:           engine,
		CacheAnswers:     cfg.CacheAnswers,
		CompressionLevel: cfg.CompressionLevel,
		Logger:           logging.L(),
	})
	if err != nil {
		return nil, err
	}
	if _, err := l.Load(ctx); err != nil {
		_ = l.Close(ctx)
		return nil, err
	}
	return l, nil
}

// withLibrary runs fn against the configured library and closes it, which
// flushes anything fn changed.
func withLibrary(ctx context.Context, fn func(*library.Library) error) (err error) {
	l, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(l)
}

func init() {
	config.SetDefaults(viper.GetViper())
	if Version != "" {
		rootCmd.Version = Version
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: smj.yaml in the user config directory)")
	flags.BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	flags.StringP("location", "l", "", "the location to search for media files")
	flags.String("data-dir", "", "directory holding the library database")
	flags.String("store", "", `store backend, "sqlite" or "memory"`)
	flags.String("engine", "", `search engine for uncached searches, "match" or "bleve"`)
	flags.Bool("cache-answers", true, "cache protocol command answers")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", `log format, "console" or "json"`)

	_ = viper.BindPFlag(config.KeyMediaDir, flags.Lookup("location"))
	_ = viper.BindPFlag(config.KeyDataDir, flags.Lookup("data-dir"))
	_ = viper.BindPFlag(config.KeyStore, flags.Lookup("store"))
	_ = viper.BindPFlag(config.KeySearchEngine, flags.Lookup("engine"))
	_ = viper.BindPFlag(config.KeyCacheAnswers, flags.Lookup("cache-answers"))
	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))

	rootCmd.AddCommand(
		scanCmd,
		searchCmd,
		browseCmd,
		lookupCmd,
		queryCmd,
		shellCmd,
		clearCmd,
		statsCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
