package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-wer/media-renamer/internal/identify"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Media, cfg.Media)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.ScanInterval())
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "config.yaml", `
media:
  watch_path: /downloads
  movie_output_path: /movies
  scan_interval: 60
  duplicate_handling: rename_with_suffix
  extensions: [".mkv", ".avi"]
parser:
  patterns:
    - id: res
      pattern: "1080p"
      category: resolution
      remove_from_title: true
      case_insensitive: true
      priority: 1
      enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/downloads", cfg.Media.WatchPath)
	assert.Equal(t, "/movies", cfg.Media.MovieOutputPath)
	assert.Equal(t, "./library", cfg.Media.OutputPath)
	assert.Equal(t, 60*time.Second, cfg.ScanInterval())
	assert.Equal(t, []string{".mkv", ".avi"}, cfg.Media.Extensions)
	require.Len(t, cfg.ParserConfiguration().Patterns, 1)
	assert.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "config.toml", `
[database]
driver = "postgres"
url = "postgres://renamer@localhost/renamer"

[media]
watch_path = "/in"
skip_rejected = true

[tmdb]
language = "en-US"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "/in", cfg.Media.WatchPath)
	assert.True(t, cfg.Media.SkipRejected)
	assert.Equal(t, "en-US", cfg.TMDB.Language)
	assert.Equal(t, "./data", cfg.DataDir())
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTMDBAPIKey, "secret")
	t.Setenv(EnvWatchPath, "/env/watch")

	cfg, err := Load(write(t, "c.yaml", "media:\n  watch_path: /file/watch\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.TMDB.APIKey)
	assert.Equal(t, "/env/watch", cfg.Media.WatchPath)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load(write(t, "bad.yaml", "media: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }},
		{"no watch path", func(c *Config) { c.Media.WatchPath = "" }},
		{"output equals watch path", func(c *Config) { c.Media.OutputPath = c.Media.WatchPath }},
		{"movie output inside watch path", func(c *Config) {
			c.Media.WatchPath = "/data/downloads"
			c.Media.MovieOutputPath = "/data/downloads/sorted/movies"
		}},
		{"episode output inside relative watch path", func(c *Config) { c.Media.EpisodeOutputPath = "./watch/../watch/tv" }},
		{"zero interval", func(c *Config) { c.Media.ScanInterval = 0 }},
		{"extension without dot", func(c *Config) { c.Media.Extensions = []string{"mkv"} }},
		{"unknown policy", func(c *Config) { c.Media.DuplicateHandling = "merge" }},
		{"empty template", func(c *Config) { c.Media.MovieTemplate = " " }},
		{"port out of range", func(c *Config) { c.Server.HTTPPort = 70000 }},
		{"auth without password", func(c *Config) { c.Server.Auth = AuthConfig{Enabled: true, Username: "u"} }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad pattern", func(c *Config) {
			c.Parser.Patterns = []identify.Pattern{{ID: "x", Pattern: "(", Enabled: true}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsSiblingOutput(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Media.WatchPath = "/data/downloads"
	cfg.Media.OutputPath = "/data/downloads-sorted"
	cfg.Media.MovieOutputPath = "/data/movies"
	assert.NoError(t, cfg.Validate())
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(base, "data", "db.sqlite")
	cfg.Media.OutputPath = filepath.Join(base, "lib")
	cfg.Media.EpisodeOutputPath = filepath.Join(base, "tv")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, filepath.Join(base, "data"))
	assert.DirExists(t, filepath.Join(base, "lib"))
	assert.DirExists(t, filepath.Join(base, "tv"))
	assert.Equal(t, filepath.Join(base, "data", "mediarenamer.lock"), cfg.LockPath())
}
