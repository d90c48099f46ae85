// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface of the relay. Values come from
// an optional YAML file, each overridable through environment variables.
type Config struct {
	// MainJID is the privileged sender whose messages are never relayed.
	MainJID string `yaml:"main_jid"`
	// SecondaryJID is the fixed destination all admitted events go to.
	SecondaryJID string `yaml:"secondary_jid"`

	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`

	MinuteCap  int `yaml:"minute_cap"`
	HourCap    int `yaml:"hour_cap"`
	MinDelayMS int `yaml:"min_delay_ms"`
	MaxDelayMS int `yaml:"max_delay_ms"`
	DupWindowS int `yaml:"dup_window_s"`

	QRMaxAttempts        int `yaml:"qr_max_attempts"`
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts"`
	BackoffBaseMS        int `yaml:"backoff_base_ms"`
	BackoffCapMS         int `yaml:"backoff_cap_ms"`

	// IgnoreSecondary drops inbound events sent by the secondary identity
	// itself, preventing relayed copies from echoing back.
	IgnoreSecondary bool `yaml:"ignore_secondary"`
}

// DefaultConfig returns a Config with every tunable at its default.
// Identities have no default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		DBPath:               "./data/warelay.db",
		ListenAddr:           ":8080",
		MinuteCap:            10,
		HourCap:              100,
		MinDelayMS:           1000,
		MaxDelayMS:           5000,
		DupWindowS:           30,
		QRMaxAttempts:        5,
		ReconnectMaxAttempts: 10,
		BackoffBaseMS:        15000,
		BackoffCapMS:         120000,
		IgnoreSecondary:      true,
	}
}

// Load reads the optional YAML config file (WARELAY_CONFIG, falling back
// to ./warelay.yaml when present), applies environment overrides and
// validates the result.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("WARELAY_CONFIG")
	if path == "" {
		if _, err := os.Stat("warelay.yaml"); err == nil {
			path = "warelay.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setStr(&c.MainJID, "WARELAY_MAIN_JID")
	setStr(&c.SecondaryJID, "WARELAY_SECONDARY_JID")
	setStr(&c.DBPath, "WARELAY_DB_PATH")
	setStr(&c.ListenAddr, "WARELAY_LISTEN_ADDR")

	// PaaS platforms inject PORT; honor it unless the listen address was
	// set explicitly.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("WARELAY_LISTEN_ADDR") == "" {
		c.ListenAddr = ":" + port
	}

	for _, v := range []struct {
		dst *int
		key string
	}{
		{&c.MinuteCap, "WARELAY_MINUTE_CAP"},
		{&c.HourCap, "WARELAY_HOUR_CAP"},
		{&c.MinDelayMS, "WARELAY_MIN_DELAY_MS"},
		{&c.MaxDelayMS, "WARELAY_MAX_DELAY_MS"},
		{&c.DupWindowS, "WARELAY_DUP_WINDOW_S"},
		{&c.QRMaxAttempts, "WARELAY_QR_MAX_ATTEMPTS"},
		{&c.ReconnectMaxAttempts, "WARELAY_RECONNECT_MAX_ATTEMPTS"},
		{&c.BackoffBaseMS, "WARELAY_BACKOFF_BASE_MS"},
		{&c.BackoffCapMS, "WARELAY_BACKOFF_CAP_MS"},
	} {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}

	if raw := os.Getenv("WARELAY_IGNORE_SECONDARY"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("WARELAY_IGNORE_SECONDARY: %w", err)
		}
		c.IgnoreSecondary = b
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks that identities are present and every tunable is a
// positive value.
func (c *Config) Validate() error {
	if c.MainJID == "" {
		return fmt.Errorf("main_jid is required")
	}
	if c.SecondaryJID == "" {
		return fmt.Errorf("secondary_jid is required")
	}
	if c.MainJID == c.SecondaryJID {
		return fmt.Errorf("main_jid and secondary_jid must differ")
	}
	for _, v := range []struct {
		val  int
		name string
	}{
		{c.MinuteCap, "minute_cap"},
		{c.HourCap, "hour_cap"},
		{c.MinDelayMS, "min_delay_ms"},
		{c.MaxDelayMS, "max_delay_ms"},
		{c.DupWindowS, "dup_window_s"},
		{c.QRMaxAttempts, "qr_max_attempts"},
		{c.ReconnectMaxAttempts, "reconnect_max_attempts"},
		{c.BackoffBaseMS, "backoff_base_ms"},
		{c.BackoffCapMS, "backoff_cap_ms"},
	} {
		if v.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", v.name, v.val)
		}
	}
	if c.MinDelayMS > c.MaxDelayMS {
		return fmt.Errorf("min_delay_ms (%d) must not exceed max_delay_ms (%d)", c.MinDelayMS, c.MaxDelayMS)
	}
	return nil
}

func (c *Config) MinDelay() time.Duration    { return time.Duration(c.MinDelayMS) * time.Millisecond }
func (c *Config) MaxDelay() time.Duration    { return time.Duration(c.MaxDelayMS) * time.Millisecond }
func (c *Config) DupWindow() time.Duration   { return time.Duration(c.DupWindowS) * time.Second }
func (c *Config) BackoffBase() time.Duration { return time.Duration(c.BackoffBaseMS) * time.Millisecond }
func (c *Config) BackoffCap() time.Duration  { return time.Duration(c.BackoffCapMS) * time.Millisecond }
