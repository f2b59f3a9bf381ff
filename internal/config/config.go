package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/to-wer/media-renamer/internal/identify"
	"github.com/to-wer/media-renamer/internal/naming"
)

// Environment variables that override file values.
const (
	EnvTMDBAPIKey = "MEDIARENAMER_TMDB_API_KEY"
	EnvWatchPath  = "MEDIARENAMER_WATCH_PATH"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Media    MediaConfig    `yaml:"media" toml:"media"`
	Parser   ParserConfig   `yaml:"parser" toml:"parser"`
	TMDB     TMDBConfig     `yaml:"tmdb" toml:"tmdb"`
	Probe    ProbeConfig    `yaml:"probe" toml:"probe"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

type ServerConfig struct {
	HTTPPort    int        `yaml:"http_port" toml:"http_port"`
	MetricsPort int        `yaml:"metrics_port" toml:"metrics_port"` // 0 disables
	WebDAVPort  int        `yaml:"webdav_port" toml:"webdav_port"`   // 0 disables
	Auth        AuthConfig `yaml:"auth" toml:"auth"`
}

// AuthConfig protects the API and the WebDAV view with basic auth.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite or postgres
	Path   string `yaml:"path" toml:"path"`
	URL    string `yaml:"url" toml:"url"`
}

type MediaConfig struct {
	WatchPath         string   `yaml:"watch_path" toml:"watch_path"`
	OutputPath        string   `yaml:"output_path" toml:"output_path"`
	MovieOutputPath   string   `yaml:"movie_output_path" toml:"movie_output_path"`
	EpisodeOutputPath string   `yaml:"episode_output_path" toml:"episode_output_path"`
	ScanInterval      int      `yaml:"scan_interval" toml:"scan_interval"` // seconds
	Extensions        []string `yaml:"extensions" toml:"extensions"`
	MovieTemplate     string   `yaml:"movie_template" toml:"movie_template"`
	EpisodeTemplate   string   `yaml:"episode_template" toml:"episode_template"`
	DuplicateHandling string   `yaml:"duplicate_handling" toml:"duplicate_handling"`
	WatchEvents       bool     `yaml:"watch_events" toml:"watch_events"`
	SkipRejected      bool     `yaml:"skip_rejected" toml:"skip_rejected"`
	VerifyContainers  bool     `yaml:"verify_containers" toml:"verify_containers"` // skip MKV/MP4 files with incomplete headers
}

// ParserConfig replaces the built-in pattern table when non-empty.
type ParserConfig struct {
	Patterns []identify.Pattern `yaml:"patterns" toml:"patterns"`
}

type TMDBConfig struct {
	APIKey             string `yaml:"api_key" toml:"api_key"`
	Language           string `yaml:"language" toml:"language"`
	CachePath          string `yaml:"cache_path" toml:"cache_path"`
	CacheTTLHours      int    `yaml:"cache_ttl_hours" toml:"cache_ttl_hours"`
	FallbackToFilename bool   `yaml:"fallback_to_filename" toml:"fallback_to_filename"` // title from the file name on a TMDB miss
}

type ProbeConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	FFProbePath string `yaml:"ffprobe_path" toml:"ffprobe_path"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"` // text, json or auto
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    5080,
			MetricsPort: 9090,
			WebDAVPort:  0,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/mediarenamer.db",
		},
		Media: MediaConfig{
			WatchPath:         "./watch",
			OutputPath:        "./library",
			ScanInterval:      30,
			Extensions:        []string{".mkv", ".mp4"},
			MovieTemplate:     naming.DefaultMovieTemplate,
			EpisodeTemplate:   naming.DefaultEpisodeTemplate,
			DuplicateHandling: "skip",
		},
		TMDB: TMDBConfig{
			Language:           "de-DE",
			CachePath:          "./data/tmdb-cache",
			CacheTTLHours:      24 * 7,
			FallbackToFilename: true,
		},
		Probe: ProbeConfig{
			Enabled:     false,
			FFProbePath: "ffprobe",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads configuration from a YAML or TOML file (by extension) and
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Use defaults if no config file
	default:
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvTMDBAPIKey); v != "" {
		c.TMDB.APIKey = v
	}
	if v := os.Getenv(EnvWatchPath); v != "" {
		c.Media.WatchPath = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.Media.WatchPath == "" {
		return errors.New("media.watch_path is required")
	}
	// Output under the watch folder would be rescanned and proposed again.
	for _, out := range []struct{ key, dir string }{
		{"media.output_path", c.Media.OutputPath},
		{"media.movie_output_path", c.Media.MovieOutputPath},
		{"media.episode_output_path", c.Media.EpisodeOutputPath},
	} {
		if out.dir != "" && isWithin(c.Media.WatchPath, out.dir) {
			return fmt.Errorf("%s %q must not be inside media.watch_path %q", out.key, out.dir, c.Media.WatchPath)
		}
	}
	if c.Media.ScanInterval <= 0 {
		return fmt.Errorf("media.scan_interval must be positive, got %d", c.Media.ScanInterval)
	}
	if len(c.Media.Extensions) == 0 {
		return errors.New("media.extensions must not be empty")
	}
	for _, ext := range c.Media.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("media.extensions entry %q must start with a dot", ext)
		}
	}
	switch c.Media.DuplicateHandling {
	case "skip", "overwrite", "rename_with_suffix":
	default:
		return fmt.Errorf("media.duplicate_handling must be skip, overwrite or rename_with_suffix, got %q", c.Media.DuplicateHandling)
	}
	if strings.TrimSpace(c.Media.MovieTemplate) == "" || strings.TrimSpace(c.Media.EpisodeTemplate) == "" {
		return errors.New("media.movie_template and media.episode_template must not be empty")
	}

	for name, port := range map[string]int{
		"server.http_port":    c.Server.HTTPPort,
		"server.metrics_port": c.Server.MetricsPort,
		"server.webdav_port":  c.Server.WebDAVPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if c.Server.Auth.Enabled && (c.Server.Auth.Username == "" || c.Server.Auth.Password == "") {
		return errors.New("server.auth requires username and password when enabled")
	}

	if _, err := identify.NewParser(c.ParserConfiguration()); err != nil {
		return fmt.Errorf("parser.patterns: %w", err)
	}

	switch c.Logging.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text, json or auto, got %q", c.Logging.Format)
	}

	return nil
}

// isWithin reports whether path is root or lies below it.
func isWithin(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ParserConfiguration returns the pattern table to use.
func (c *Config) ParserConfiguration() identify.Configuration {
	if len(c.Parser.Patterns) == 0 {
		return identify.DefaultConfiguration()
	}
	return identify.Configuration{Patterns: c.Parser.Patterns}
}

// ScanInterval returns the scan interval as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Media.ScanInterval) * time.Second
}

// CacheTTL returns the TMDB cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.TMDB.CacheTTLHours) * time.Hour
}

// DataDir is the directory holding the database and the daemon lock.
func (c *Config) DataDir() string {
	if c.Database.Driver == "sqlite" && c.Database.Path != "" {
		return filepath.Dir(c.Database.Path)
	}
	return "./data"
}

// LockPath is the file used to keep a single daemon per data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir(), "mediarenamer.lock")
}

// EnsureDirectories creates required directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir()}
	if c.TMDB.APIKey != "" && c.TMDB.CachePath != "" {
		dirs = append(dirs, c.TMDB.CachePath)
	}
	for _, dir := range []string{c.Media.OutputPath, c.Media.MovieOutputPath, c.Media.EpisodeOutputPath} {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}
