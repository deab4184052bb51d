package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Game package
	PackageID     string `mapstructure:"package-id" yaml:"package-id"`
	ProcessName   string `mapstructure:"process-name" yaml:"process-name"`
	TargetVersion string `mapstructure:"target-version" yaml:"target-version"`

	// External tools
	DumpTool   string `mapstructure:"dump-tool" yaml:"dump-tool"`
	PowerShell string `mapstructure:"powershell" yaml:"powershell"`

	// Destination rules
	LedgerPath   string `mapstructure:"ledger-path" yaml:"ledger-path"`
	MinFreeBytes uint64 `mapstructure:"min-free-bytes" yaml:"min-free-bytes"`

	// Companion archive
	ArchivePath     string `mapstructure:"archive-path" yaml:"archive-path"`
	ArchiveBucket   string `mapstructure:"archive-bucket" yaml:"archive-bucket"`
	ArchiveKey      string `mapstructure:"archive-key" yaml:"archive-key"`
	ArchiveRegion   string `mapstructure:"archive-region" yaml:"archive-region"`
	ArchiveSHA256   string `mapstructure:"archive-sha256" yaml:"archive-sha256"`
	ArchiveCacheDir string `mapstructure:"archive-cache-dir" yaml:"archive-cache-dir"`

	// Security limits
	MaxFileSize         int64   `mapstructure:"max-file-size" yaml:"max-file-size"`
	MaxTotalSize        int64   `mapstructure:"max-total-size" yaml:"max-total-size"`
	MaxCompressionRatio float64 `mapstructure:"max-compression-ratio" yaml:"max-compression-ratio"`

	// History and journal
	SQLitePath string `mapstructure:"sqlite-path" yaml:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path" yaml:"fsm-db-path"`
	Journal    bool   `mapstructure:"journal" yaml:"journal"`

	// Logging
	LogFile  string `mapstructure:"log-file" yaml:"log-file"`
	LogLevel string `mapstructure:"log-level" yaml:"log-level"`
}

// dataDir is where history, journal, cache and logs live by default.
func dataDir() string {
	return filepath.Join(xdg.DataHome, "doomdumper")
}

// SetDefaults installs the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("package-id", "BethesdaSoftworks.DOOMEternal-PC")
	v.SetDefault("process-name", "DOOMEternalx64vk.exe")
	v.SetDefault("target-version", "1.0.5.0")
	v.SetDefault("dump-tool", "UWPInjector.exe")
	v.SetDefault("powershell", "powershell.exe")
	v.SetDefault("ledger-path", "aborted")
	v.SetDefault("min-free-bytes", uint64(75*1024*1024*1024))
	v.SetDefault("archive-path", "EternalModInjector-UWP.zip")
	v.SetDefault("archive-bucket", "")
	v.SetDefault("archive-key", "")
	v.SetDefault("archive-region", "us-east-1")
	v.SetDefault("archive-sha256", "")
	v.SetDefault("archive-cache-dir", filepath.Join(dataDir(), "cache"))
	v.SetDefault("max-file-size", 2*1024*1024*1024)
	v.SetDefault("max-total-size", 20*1024*1024*1024)
	v.SetDefault("max-compression-ratio", 100.0)
	v.SetDefault("sqlite-path", filepath.Join(dataDir(), "history.db"))
	v.SetDefault("fsm-db-path", filepath.Join(dataDir(), "fsm"))
	v.SetDefault("journal", true)
	v.SetDefault("log-file", filepath.Join(dataDir(), "doomdumper.log"))
	v.SetDefault("log-level", "info")
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load on a specific viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Environment variables (will be DOOMDUMPER_DUMP_TOOL, etc.)
	v.SetEnvPrefix("DOOMDUMPER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	v.SetConfigName("doomdumper")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.doomdumper")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	for key, val := range map[string]string{
		"package-id":     c.PackageID,
		"process-name":   c.ProcessName,
		"target-version": c.TargetVersion,
		"dump-tool":      c.DumpTool,
		"ledger-path":    c.LedgerPath,
		"archive-path":   c.ArchivePath,
		"sqlite-path":    c.SQLitePath,
	} {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("%s cannot be empty", key)
		}
	}
	if c.Journal && c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty when journal is enabled")
	}
	if c.MinFreeBytes == 0 {
		return fmt.Errorf("min-free-bytes must be positive")
	}
	if c.ArchiveBucket != "" && c.ArchiveKey == "" {
		return fmt.Errorf("archive-key is required when archive-bucket is set")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max-file-size must be positive")
	}
	if c.MaxTotalSize <= 0 {
		return fmt.Errorf("max-total-size must be positive")
	}
	if c.MaxCompressionRatio <= 0 {
		return fmt.Errorf("max-compression-ratio must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log-level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
