// Package config loads the botwc.toml configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/FocuswithJustin/SheikahConverter/core/errors"
	"github.com/FocuswithJustin/SheikahConverter/internal/logging"
)

// FileName is the configuration file name looked up in the user config dir.
const FileName = "botwc.toml"

// Config holds settings shared by every command. Command line flags
// override these values.
type Config struct {
	// OutputDir is the parent directory for generated output directories.
	OutputDir string `toml:"output_dir"`
	// Workers bounds parallel file conversion. 0 uses GOMAXPROCS.
	Workers int `toml:"workers"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `toml:"log_format"`
	// HistoryDB is the SQLite conversion history. Empty disables history.
	HistoryDB string `toml:"history_db"`
	// BackupDir receives a tar.xz of every input before conversion.
	// Empty disables backups.
	BackupDir string `toml:"backup_dir"`

	// Path is the file the config was loaded from (set at load time).
	Path string `toml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir: ".",
		LogLevel:  "info",
		LogFormat: "text",
		HistoryDB: defaultHistoryDB(),
	}
}

func defaultHistoryDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "botwc", "history.db")
}

// DefaultPath returns the path of the user config file.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(dir, "botwc", FileName)
}

// Load reads the config file at path over the defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.NewIO("read", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, &errors.ValidationError{
			Field:   undecoded[0].String(),
			Message: fmt.Sprintf("unknown key in %s", path),
		}
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return errors.NewValidation("workers", "must not be negative")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidation("log_level", err.Error())
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return errors.NewValidation("log_format", err.Error())
	}
	return nil
}

// Logging returns the parsed logger settings.
func (c *Config) Logging() (logging.Level, logging.Format) {
	level, _ := logging.ParseLevel(c.LogLevel)
	format, _ := logging.ParseFormat(c.LogFormat)
	return level, format
}
