package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	DataDir      string        `json:"data_dir"`
	DBPath       string        `json:"-"`
	SpoolDir     string        `json:"spool_dir"`
	Timezone     string        `json:"timezone,omitempty"`
	IdleCutoff   time.Duration `json:"-"`
	WriteTimeout time.Duration `json:"-"`

	// Multi-directory support (from config.json). When set,
	// these take precedence over SpoolDir. Env vars override
	// with a single-element slice.
	SpoolDirs []string `json:"spool_dirs,omitempty"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".pulseview")
	return Config{
		Host:         "127.0.0.1",
		Port:         8090,
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "heartbeats.db"),
		SpoolDir:     filepath.Join(home, ".pulseview", "spool"),
		IdleCutoff:   2 * time.Minute,
		WriteTimeout: 30 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal layers defaults < config file < env, without
// parsing CLI flags. Use this for subcommands that manage their
// own flag sets.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	// The data dir env var resolves first: it decides where
	// config.json lives.
	if v := os.Getenv("PULSEVIEW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	cfg.DBPath = filepath.Join(cfg.DataDir, "heartbeats.db")
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host           string   `json:"host"`
		Port           int      `json:"port"`
		Timezone       string   `json:"timezone"`
		IdleCutoffSecs int      `json:"idle_cutoff_seconds"`
		SpoolDirs      []string `json:"spool_dirs"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Host != "" {
		c.Host = file.Host
	}
	if file.Port > 0 {
		c.Port = file.Port
	}
	if file.Timezone != "" {
		c.Timezone = file.Timezone
	}
	if file.IdleCutoffSecs > 0 {
		c.IdleCutoff = time.Duration(file.IdleCutoffSecs) * time.Second
	}
	if len(file.SpoolDirs) > 0 {
		c.SpoolDirs = file.SpoolDirs
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("PULSEVIEW_SPOOL_DIR"); v != "" {
		c.SpoolDir = v
		c.SpoolDirs = []string{v}
	}
	if v := os.Getenv("PULSEVIEW_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PULSEVIEW_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("PULSEVIEW_IDLE_CUTOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.IdleCutoff = d
		}
	}
}

// ResolveSpoolDirs returns the effective list of spool
// directories. Precedence: env var (single) > config file array >
// default (single).
func (c *Config) ResolveSpoolDirs() []string {
	if len(c.SpoolDirs) > 0 {
		return c.SpoolDirs
	}
	if c.SpoolDir != "" {
		return []string{c.SpoolDir}
	}
	return nil
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8090, "Port to listen on")
	fs.String("spool-dir", "", "Heartbeat spool directory to ingest")
	fs.String("timezone", "", "IANA timezone for week and day bucketing")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "spool-dir":
			cfg.SpoolDir = f.Value.String()
			cfg.SpoolDirs = []string{f.Value.String()}
		case "timezone":
			cfg.Timezone = f.Value.String()
		}
	})
}

// ResolveDataDir returns the effective data directory by applying
// defaults and environment overrides, without reading any files.
func ResolveDataDir() (string, error) {
	cfg, err := Default()
	if err != nil {
		return "", err
	}
	if v := os.Getenv("PULSEVIEW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	return cfg.DataDir, nil
}

// SaveSpoolDirs persists the spool directory list to the config
// file, preserving unrelated keys.
func (c *Config) SaveSpoolDirs(dirs []string) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing["spool_dirs"] = dirs
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	c.SpoolDirs = dirs
	return nil
}
