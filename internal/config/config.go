// Package config loads settings from flags, the environment and an optional
// smj.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"smj-library/internal/logging"
	"smj-library/internal/search"
	"smj-library/internal/store"
)

// AppName names the config file, the environment prefix and the default
// directories.
const AppName = "smj"

// Config keys.
const (
	KeyDataDir          = "data_dir"
	KeyMediaDir         = "media_dir"
	KeyStore            = "store"
	KeySearchEngine     = "search.engine"
	KeyCacheAnswers     = "cache_answers"
	KeyCompressionLevel = "compression_level"
	KeyScanWorkers      = "scan.workers"
	KeyScanExtensions   = "scan.extensions"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyMetricsAddr      = "metrics_addr"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved configuration.
type Config struct {
	DataDir          string
	MediaDir         string
	Store            string
	SearchEngine     string
	CacheAnswers     bool
	CompressionLevel int
	Scan             ScanConfig
	Log              logging.Config
	MetricsAddr      string
}

// ScanConfig controls the media scanner.
type ScanConfig struct {
	Workers    int
	Extensions []string
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	dataDir := "~/.local/share/" + AppName
	if p, err := gap.NewScope(gap.User, AppName).DataPath(""); err == nil {
		dataDir = p
	}
	v.SetDefault(KeyDataDir, dataDir)
	v.SetDefault(KeyMediaDir, "~/Music")
	v.SetDefault(KeyStore, store.BackendSQLite)
	v.SetDefault(KeySearchEngine, search.EngineMatch)
	v.SetDefault(KeyCacheAnswers, true)
	v.SetDefault(KeyCompressionLevel, 3)
	v.SetDefault(KeyScanWorkers, runtime.NumCPU())
	v.SetDefault(KeyScanExtensions, []string{".mp3", ".m4a", ".ogg", ".oga", ".flac"})
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyMetricsAddr, "")
}

// AddConfigPaths points v at smj.yaml in the user config directories.
// SMJ_CONFIG_HOME and XDG_CONFIG_HOME take precedence.
func AddConfigPaths(v *viper.Viper) error {
	dirs, err := gap.NewScope(gap.User, AppName).ConfigDirs()
	if err != nil {
		return fmt.Errorf("find configuration directories: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("SMJ_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	return nil
}

// Load reads the config file, if any, and resolves every key. A missing
// config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Store:            v.GetString(KeyStore),
		SearchEngine:     v.GetString(KeySearchEngine),
		CacheAnswers:     v.GetBool(KeyCacheAnswers),
		CompressionLevel: v.GetInt(KeyCompressionLevel),
		Scan: ScanConfig{
			Workers:    v.GetInt(KeyScanWorkers),
			Extensions: v.GetStringSlice(KeyScanExtensions),
		},
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		MetricsAddr: v.GetString(KeyMetricsAddr),
	}

	var err error
	if cfg.DataDir, err = ExpandPath(v.GetString(KeyDataDir)); err != nil {
		return Config{}, err
	}
	if cfg.MediaDir, err = ExpandPath(v.GetString(KeyMediaDir)); err != nil {
		return Config{}, err
	}
	exts := make([]string, 0, len(cfg.Scan.Extensions))
	for _, ext := range cfg.Scan.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	cfg.Scan.Extensions = exts
	if cfg.Scan.Workers <= 0 {
		cfg.Scan.Workers = runtime.NumCPU()
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated and ranged values.
func (c Config) Validate() error {
	switch c.Store {
	case store.BackendSQLite, store.BackendMemory:
	default:
		return fmt.Errorf("%w: store %q", ErrInvalid, c.Store)
	}
	switch c.SearchEngine {
	case search.EngineMatch, search.EngineBleve:
	default:
		return fmt.Errorf("%w: search.engine %q", ErrInvalid, c.SearchEngine)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("%w: compression_level %d out of range 0-22", ErrInvalid, c.CompressionLevel)
	}
	return nil
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return filepath.Abs(expanded)
}
