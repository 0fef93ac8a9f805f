package config

import (
	"path/filepath"
	"strings"
)

// Path resolves p against Root unless it is already absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// OutputDir is the resolved artifact directory.
func (c *Config) OutputDir() string {
	return c.Path(c.Paths.OutputDir)
}

// PixelsDir is the resolved pixel-summary directory.
func (c *Config) PixelsDir() string {
	return c.Path(c.Paths.PixelsDir)
}

// ColorsDir is the resolved colour-file directory.
func (c *Config) ColorsDir() string {
	return c.Path(c.Paths.ColorsDir)
}

// Placeholder is the resolved placeholder image.
func (c *Config) Placeholder() string {
	return c.Path(c.Paths.Placeholder)
}

// StoreDSN returns the DSN to open. Plain relative sqlite file paths are
// resolved against Root; URIs and Postgres DSNs pass through.
func (c *Config) StoreDSN() string {
	dsn := c.Store.DSN
	if c.Store.Driver != "sqlite" {
		return dsn
	}
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return c.Path(dsn)
}
