package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRemote(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeParser()
	c.normalizeQuery()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		c.Paths.DBPath = defaultDBPath
	}
	if c.Paths.DBPath, err = expandPath(strings.TrimSpace(c.Paths.DBPath)); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() error {
	if value, ok := os.LookupEnv("PLANSO_BASE_URL"); ok && strings.TrimSpace(c.Remote.BaseURL) == "" {
		c.Remote.BaseURL = value
	}
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")

	if value, ok := os.LookupEnv("PLANSO_COOKIE_JAR"); ok && strings.TrimSpace(c.Remote.CookieJar) == "" {
		c.Remote.CookieJar = value
	}
	if jar := strings.TrimSpace(c.Remote.CookieJar); jar != "" {
		expanded, err := expandPath(jar)
		if err != nil {
			return fmt.Errorf("remote.cookie_jar: %w", err)
		}
		c.Remote.CookieJar = expanded
	}

	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = defaultUserAgent
	}
	if c.Remote.FormTableID == 0 {
		c.Remote.FormTableID = defaultFormTableID
	}
	return nil
}

func (c *Config) normalizeSync() {
	if c.Sync.Jobs == 0 {
		c.Sync.Jobs = defaultJobs
	}
}

func (c *Config) normalizeParser() {
	c.Parser.Strategy = strings.ToLower(strings.TrimSpace(c.Parser.Strategy))
	if c.Parser.Strategy == "" {
		c.Parser.Strategy = defaultParserStrategy
	}
}

func (c *Config) normalizeQuery() {
	if c.Query.DefaultLimit == 0 {
		c.Query.DefaultLimit = defaultQueryLimit
	}
	if c.Query.MaxLimit == 0 {
		c.Query.MaxLimit = defaultQueryMaxLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
