package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string

	// DB
	Env      string // "dev" | "prod"
	DBPath   string // e.g. "./data/labgate.db"
	Recovery string // "abort" | "reset"

	// Roster provisioning
	RosterPath string // YAML roster file; empty in dev seeds the built-in roster

	// Read views
	PresenceWindow time.Duration // trailing window for "currently inside"
	HistoryLimit   int           // bound on the recent-history view

	// Scan endpoint rate limiting (per client IP); 0 disables
	ScanRatePerSec int
	ScanBurst      int
}

// File mirrors Config for the optional YAML config file.  Environment
// variables win over file values.
type File struct {
	HTTPAddr       string `yaml:"http_addr"`
	Env            string `yaml:"env"`
	DBPath         string `yaml:"db_path"`
	Recovery       string `yaml:"recovery"`
	RosterPath     string `yaml:"roster_path"`
	PresenceWindow string `yaml:"presence_window"`
	HistoryLimit   int    `yaml:"history_limit"`
	ScanRatePerSec int    `yaml:"scan_rate_per_sec"`
	ScanBurst      int    `yaml:"scan_burst"`
}

func Default() Config {
	return Config{
		HTTPAddr:       ":8080",
		Env:            "dev",
		DBPath:         "./data/labgate.db",
		Recovery:       "abort",
		PresenceWindow: 24 * time.Hour,
		HistoryLimit:   100,
		ScanRatePerSec: 0,
		ScanBurst:      0,
	}
}

// Load resolves the configuration: defaults, then the YAML file at path
// (if non-empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	if cfg.Recovery != "abort" && cfg.Recovery != "reset" {
		return Config{}, fmt.Errorf("config: recovery must be abort or reset, got %q", cfg.Recovery)
	}
	return cfg, nil
}

// FromEnv resolves the configuration from defaults and environment only.
func FromEnv() Config {
	cfg := Default()
	applyEnv(&cfg)
	if cfg.Env != "dev" && cfg.Env != "prod" {
		cfg.Env = "dev"
	}
	if cfg.Recovery != "abort" && cfg.Recovery != "reset" {
		cfg.Recovery = "abort"
	}
	return cfg
}

func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if f.HTTPAddr != "" {
		cfg.HTTPAddr = f.HTTPAddr
	}
	if f.Env != "" {
		cfg.Env = strings.ToLower(f.Env)
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.Recovery != "" {
		cfg.Recovery = strings.ToLower(f.Recovery)
	}
	if f.RosterPath != "" {
		cfg.RosterPath = f.RosterPath
	}
	if f.PresenceWindow != "" {
		d, err := time.ParseDuration(f.PresenceWindow)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: bad presence_window %q", f.PresenceWindow)
		}
		cfg.PresenceWindow = d
	}
	if f.HistoryLimit > 0 {
		cfg.HistoryLimit = f.HistoryLimit
	}
	if f.ScanRatePerSec > 0 {
		cfg.ScanRatePerSec = f.ScanRatePerSec
	}
	if f.ScanBurst > 0 {
		cfg.ScanBurst = f.ScanBurst
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("LABGATE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Env = strings.ToLower(getenvDefault("LABGATE_ENV", cfg.Env))
	cfg.DBPath = getenvDefault("LABGATE_DB_PATH", cfg.DBPath)
	cfg.Recovery = strings.ToLower(getenvDefault("LABGATE_RECOVERY", cfg.Recovery))
	cfg.RosterPath = getenvDefault("LABGATE_ROSTER_PATH", cfg.RosterPath)
	cfg.PresenceWindow = getenvDuration("LABGATE_PRESENCE_WINDOW", cfg.PresenceWindow)
	cfg.HistoryLimit = getenvInt("LABGATE_HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.ScanRatePerSec = getenvInt("LABGATE_SCAN_RATE", cfg.ScanRatePerSec)
	cfg.ScanBurst = getenvInt("LABGATE_SCAN_BURST", cfg.ScanBurst)
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
