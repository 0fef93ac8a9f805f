package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "mosaic.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/mosaic"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Environment overrides, applied after every file layer.
const (
	EnvRoot        = "MOSAIC_ROOT"
	EnvStoreDriver = "MOSAIC_STORE_DRIVER"
	EnvStoreDSN    = "MOSAIC_STORE_DSN"
	EnvAddr        = "MOSAIC_ADDR"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger  *zap.Logger
	homeDir func() (string, error)
	workDir func() (string, error)
	getenv  func(string) string
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger:  logger,
		homeDir: os.UserHomeDir,
		workDir: os.Getwd,
		getenv:  os.Getenv,
	}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/mosaic/config.yaml)
// 3. Project config (mosaic.yaml in current or parent directories)
// 4. The explicit path, when not empty
// 5. Environment variables
//
// A missing user or project file is skipped; a missing explicit file is an
// error.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	config := DefaultConfig()

	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if err := mergeFile(config, userConfigPath); err == nil {
			l.logger.Debug("loaded user config", zap.String("path", userConfigPath))
		} else if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("failed to load user config", zap.String("path", userConfigPath), zap.Error(err))
		}
	}

	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if err := mergeFile(config, projectConfigPath); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded project config", zap.String("path", projectConfigPath))
		if !filepath.IsAbs(config.Root) {
			config.Root = filepath.Join(filepath.Dir(projectConfigPath), config.Root)
		}
	}

	if explicitPath != "" {
		if err := mergeFile(config, explicitPath); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config", zap.String("path", explicitPath))
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (l *Loader) applyEnv(config *Config) {
	if v := strings.TrimSpace(l.getenv(EnvRoot)); v != "" {
		config.Root = v
	}
	if v := strings.TrimSpace(l.getenv(EnvStoreDriver)); v != "" {
		config.Store.Driver = v
	}
	if v := strings.TrimSpace(l.getenv(EnvStoreDSN)); v != "" {
		config.Store.DSN = v
	}
	if v := strings.TrimSpace(l.getenv(EnvAddr)); v != "" {
		config.Server.Addr = v
	}
}

// userConfigPath returns the path to the user config file.
func (l *Loader) userConfigPath() string {
	home, err := l.homeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for mosaic.yaml in current and parent directories.
func (l *Loader) findProjectConfig() string {
	cwd, err := l.workDir()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
