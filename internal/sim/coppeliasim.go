package sim

import (
	"os"
	"path/filepath"
	"strings"
)

// CoppeliaSimBackend starts CoppeliaSim with the control add-on listening on
// stdio. COPPELIASIM_ROOT locates the installation.
type CoppeliaSimBackend struct{}

func (CoppeliaSimBackend) Name() string { return "coppeliasim" }

func (CoppeliaSimBackend) Command() string {
	if root := coppeliaSimRoot(); root != "" {
		return filepath.Join(root, "coppeliaSim.sh")
	}
	return "coppeliaSim.sh"
}

func (CoppeliaSimBackend) BuildArgs(opts LaunchOptions) []string {
	var args []string
	if opts.Headless {
		args = append(args, "-h")
	}
	args = append(args, "-GstdioControl=true")
	if scene := strings.TrimSpace(opts.ScenePath); scene != "" {
		args = append(args, scene)
	}
	return args
}

// Env mirrors what the CoppeliaSim launcher script expects: the library
// path and Qt plugin path both point at the installation root.
func (CoppeliaSimBackend) Env(opts LaunchOptions) map[string]string {
	root := coppeliaSimRoot()
	if root == "" && strings.TrimSpace(opts.Binary) != "" {
		root = filepath.Dir(opts.Binary)
	}
	if root == "" {
		return nil
	}
	env := map[string]string{
		"COPPELIASIM_ROOT":            root,
		"QT_QPA_PLATFORM_PLUGIN_PATH": root,
	}
	if existing := os.Getenv("LD_LIBRARY_PATH"); existing != "" {
		env["LD_LIBRARY_PATH"] = root + string(os.PathListSeparator) + existing
	} else {
		env["LD_LIBRARY_PATH"] = root
	}
	return env
}

func coppeliaSimRoot() string {
	return strings.TrimSpace(os.Getenv("COPPELIASIM_ROOT"))
}
