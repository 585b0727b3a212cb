package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateParser(); err != nil {
		return err
	}
	if err := c.validateQuery(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateRemote reports whether remote access is configured. Commands that
// only read the local store skip it.
func (c *Config) ValidateRemote() error {
	if c.Remote.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/plansync/config.toml"
		}
		return fmt.Errorf("remote.base_url is required. Set PLANSO_BASE_URL env var or edit %s (create with 'plansync config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Remote.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("remote.base_url %q is not an absolute URL", c.Remote.BaseURL)
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.TimeoutSeconds <= 0 {
		return errors.New("remote.timeout_seconds must be positive")
	}
	if c.Remote.FormTableID < 0 {
		return errors.New("remote.form_table_id must not be negative")
	}
	if c.Remote.BaseURL != "" {
		return c.ValidateRemote()
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Jobs <= 0 {
		return errors.New("sync.jobs must be positive")
	}
	if c.Sync.DelayMS < 0 {
		return errors.New("sync.delay_ms must not be negative")
	}
	return nil
}

func (c *Config) validateParser() error {
	switch c.Parser.Strategy {
	case StrategyAuto, StrategyTree, StrategyRegex:
		return nil
	default:
		return fmt.Errorf("parser.strategy: unsupported value %q (want auto, tree, or regex)", c.Parser.Strategy)
	}
}

func (c *Config) validateQuery() error {
	if c.Query.DefaultLimit <= 0 {
		return errors.New("query.default_limit must be positive")
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		return errors.New("query.max_limit must be at least query.default_limit")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
