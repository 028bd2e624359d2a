package sim

import (
	"fmt"
	"strings"
)

// DefaultBackend is used when no backend name is configured.
const DefaultBackend = "coppeliasim"

// Backend describes how to start one kind of simulator binary: which
// executable to run, which arguments load the scene, and which environment
// variables it needs.
type Backend interface {
	Name() string
	Command() string
	BuildArgs(opts LaunchOptions) []string
	Env(opts LaunchOptions) map[string]string
}

var registry = map[string]Backend{
	"coppeliasim": CoppeliaSimBackend{},
	"bridge":      BridgeBackend{},
}

// Registry exposes the available backends. Intended for inspection/tests.
func Registry() map[string]Backend {
	return registry
}

// Select returns the backend registered under name (case-insensitive).
// An empty name selects DefaultBackend.
func Select(name string) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultBackend
	}
	if backend, ok := registry[key]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("unsupported simulator backend %q", name)
}
