package config

import (
	"os"
	"strings"
)

// Environment variables take precedence over the file.
const (
	EnvLibrary = "LEADSHEET_LIBRARY"
	EnvBind    = "LEADSHEET_BIND"
)

func (c *Config) normalize() error {
	if value, ok := os.LookupEnv(EnvLibrary); ok && strings.TrimSpace(value) != "" {
		c.Library.Path = value
	}
	if value, ok := os.LookupEnv(EnvBind); ok && strings.TrimSpace(value) != "" {
		c.Server.Bind = value
	}

	path, err := expandPath(strings.TrimSpace(c.Library.Path))
	if err != nil {
		return err
	}
	c.Library.Path = path
	if c.Server.Watch, err = expandPath(strings.TrimSpace(c.Server.Watch)); err != nil {
		return err
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)

	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "auto"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
