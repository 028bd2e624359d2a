package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds CLI configuration.
type Config struct {
	Task            string
	ArmActionMode   string
	GripperMode     string
	DatasetRoot     string
	ObsConfigFile   string
	AssetsDir       string
	Backend         string
	SimulatorBinary string
	Headless        bool
	StaticPositions bool
	Hold            bool
	StatusAddr      string
	// LaunchTimeout is how long, in seconds, to wait for the simulator to load
	// the scene. 0 waits forever.
	LaunchTimeout int
}

// EnvFlagEnabled returns true when the environment variable exists and is not
// explicitly set to a falsey value ("0/false/no/off").
func EnvFlagEnabled(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func ParseBoolFlag(val string, defaultValue bool) bool {
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// ValidateTaskName accepts snake-case task names such as "reach_target".
// A trailing file extension is allowed so task model filenames can be
// passed directly.
func ValidateTaskName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("task name is empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_', r == '.':
		default:
			return fmt.Errorf("task name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

const maxLaunchTimeout = 3600

// ResolveLaunchTimeout clamps a configured timeout to [0, maxLaunchTimeout]
// seconds. Negative values mean "no timeout".
func ResolveLaunchTimeout(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > maxLaunchTimeout {
		return maxLaunchTimeout
	}
	return seconds
}
