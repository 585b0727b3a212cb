package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"plansync/internal/config"
	"plansync/internal/fragment"
	"plansync/internal/logging"
	"plansync/internal/query"
	"plansync/internal/remote"
	"plansync/internal/store"
	"plansync/internal/syncer"
)

type commandContext struct {
	configFlag *string
	dbFlag     *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, dbFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		dbFlag:     dbFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.dbFlag != nil && strings.TrimSpace(*c.dbFlag) != "" {
			dbPath, err := config.ExpandPath(strings.TrimSpace(*c.dbFlag))
			if err != nil {
				c.configErr = fmt.Errorf("resolve --db: %w", err)
				return
			}
			cfg.Paths.DBPath = dbPath
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func (c *commandContext) queryEngine(st *store.Store) (*query.Engine, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		logger = logging.NewNop()
	}
	return query.NewEngine(st, c.configValue().Query, logger)
}

// sessionFactory returns a constructor for authenticated sessions. Each call
// yields an independent cookie jar and connection pool.
func (c *commandContext) sessionFactory(logger *slog.Logger) (syncer.SessionFactory, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}
	opts := remote.SessionOptions{
		BaseURL:   cfg.Remote.BaseURL,
		CookieJar: cfg.Remote.CookieJar,
		Timeout:   cfg.RequestTimeout(),
		UserAgent: cfg.Remote.UserAgent,
		Logger:    logger,
	}
	return func() (remote.Session, error) {
		return remote.NewHTTPSession(opts)
	}, nil
}

func (c *commandContext) parser() (fragment.Parser, error) {
	return fragment.Select(c.configValue().Parser.Strategy)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
