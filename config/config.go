// Package config loads and validates archiver configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
	StaticDir   string `mapstructure:"static_dir"`
}

// StorageConfig sets the on-disk layout.
type StorageConfig struct {
	Root       string `mapstructure:"root"`
	TempRoot   string `mapstructure:"temp_root"`
	UploadsDir string `mapstructure:"uploads_dir"`
	TempKeep   string `mapstructure:"temp_keep"` // temp root entry the reaper leaves alone
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MirrorConfig describes the external site-mirroring tool.
type MirrorConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"` // 0 disables the deadline
}

// UploadConfig bounds file imports.
type UploadConfig struct {
	MaxFileMB int `mapstructure:"max_file_mb"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional .env file, an optional config file and
// WEBBANK_* environment variables.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("WEBBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.absolutize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.body_limit_mb", 256)
	v.SetDefault("server.static_dir", "build")
	v.SetDefault("storage.root", "DownloadedHTML")
	v.SetDefault("storage.temp_root", "WebsiteTempDatabase")
	v.SetDefault("storage.uploads_dir", "")
	v.SetDefault("storage.temp_keep", "")
	v.SetDefault("database.path", filepath.Join("database", "websites.db"))
	v.SetDefault("mirror.binary", "httrack")
	v.SetDefault("mirror.timeout", "0s")
	v.SetDefault("upload.max_file_mb", 50)
	v.SetDefault("logging.development", true)
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.BodyLimitMB <= 0 {
		errs = append(errs, errors.New("server.body_limit_mb must be positive"))
	}
	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage.root is required"))
	}
	if c.Storage.TempRoot == "" {
		errs = append(errs, errors.New("storage.temp_root is required"))
	}
	if c.Storage.Root != "" && filepath.Clean(c.Storage.Root) == filepath.Clean(c.Storage.TempRoot) {
		errs = append(errs, errors.New("storage.root and storage.temp_root must differ"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Mirror.Binary == "" {
		errs = append(errs, errors.New("mirror.binary is required"))
	}
	if c.Mirror.Timeout < 0 {
		errs = append(errs, errors.New("mirror.timeout must not be negative"))
	}
	if c.Upload.MaxFileMB <= 0 {
		errs = append(errs, errors.New("upload.max_file_mb must be positive"))
	}
	if c.Upload.MaxFileMB > c.Server.BodyLimitMB {
		errs = append(errs, errors.New("upload.max_file_mb exceeds server.body_limit_mb"))
	}
	if strings.ContainsAny(c.Storage.TempKeep, `/\`) {
		errs = append(errs, errors.New("storage.temp_keep must be a single entry name"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// absolutize makes stored paths absolute so records never hold relative paths.
func (c *Config) absolutize() error {
	if c.Storage.UploadsDir == "" {
		c.Storage.UploadsDir = filepath.Join(c.Storage.Root, "uploads")
	}
	for _, p := range []*string{&c.Storage.Root, &c.Storage.TempRoot, &c.Storage.UploadsDir, &c.Database.Path} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// MaxUploadBytes is the per-file upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileMB) << 20
}

// BodyLimitBytes is the request body limit in bytes.
func (c Config) BodyLimitBytes() int {
	return c.Server.BodyLimitMB << 20
}
