package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"rlbench-env/internal/action"
	"rlbench-env/internal/sim"
)

const (
	// EnvPrefix namespaces environment overrides: RLBENCH_ACTION_MODE, ...
	EnvPrefix = "RLBENCH"
	// ConfigDirName is the per-user config directory under $HOME.
	ConfigDirName = ".rlbench"
	// DefaultLaunchTimeout is the scene load timeout in seconds.
	DefaultLaunchTimeout = 120
)

// settingDefaults are the values a run gets when neither a flag, the
// environment nor a config file names a key.
var settingDefaults = map[string]any{
	"action-mode":      action.AbsJointVelocity.String(),
	"gripper-mode":     action.OpenAmount.String(),
	"backend":          sim.DefaultBackend,
	"headless":         false,
	"static-positions": false,
	"hold":             false,
	"launch-timeout":   DefaultLaunchTimeout,
}

// NewViper returns a viper instance for RLBENCH_* environment variables and
// an optional config file, seeded with the run defaults.
//
// Search order when configFile is empty:
//   - $HOME/.rlbench/config.(yaml|yml|json|toml|...)
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	for key, val := range settingDefaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		return v, nil
	}

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return v, nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(home, ConfigDirName))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, err
	}

	return v, nil
}
