package config

import (
	"os"
	"path/filepath"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.AddConfigPath(t.TempDir())
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Music"), cfg.MediaDir)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, "match", cfg.SearchEngine)
	assert.True(t, cfg.CacheAnswers)
	assert.Equal(t, 3, cfg.CompressionLevel)
	assert.Positive(t, cfg.Scan.Workers)
	assert.Contains(t, cfg.Scan.Extensions, ".flac")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`
store: memory
media_dir: /srv/music
search:
  engine: bleve
scan:
  extensions: [MP3, "opus"]
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smj.yaml"), data, 0o600))
	t.Setenv("SMJ_COMPRESSION_LEVEL", "0")
	t.Setenv("SMJ_CACHE_ANSWERS", "false")

	v := viper.New()
	SetDefaults(v)
	v.AddConfigPath(dir)
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "/srv/music", cfg.MediaDir)
	assert.Equal(t, "bleve", cfg.SearchEngine)
	assert.Equal(t, []string{".mp3", ".opus"}, cfg.Scan.Extensions)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0, cfg.CompressionLevel)
	assert.False(t, cfg.CacheAnswers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]any{
		KeyStore:            "postgres",
		KeySearchEngine:     "lucene",
		KeyCompressionLevel: 40,
	}
	for key, value := range tests {
		v := newViper(t)
		v.Set(key, value)
		_, err := Load(v)
		assert.ErrorIs(t, err, ErrInvalid, key)
	}
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smj.yaml"), []byte("store: [unclosed"), 0o600))
	v := viper.New()
	SetDefaults(v)
	v.AddConfigPath(dir)
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")

	_, err := Load(v)
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	p, err := ExpandPath("~/x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), p)

	p, err = ExpandPath("rel")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))
}

func TestAddConfigPathsHonorsEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smj.yaml"), []byte("store: memory\n"), 0o600))
	t.Setenv("SMJ_CONFIG_HOME", dir)

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, AddConfigPaths(v))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, filepath.Join(dir, "smj.yaml"), v.ConfigFileUsed())
}
