// Package config holds the profile configuration of the daemon.
package config

import (
	"os"
	"path/filepath"
	"sort"
)

// OutputSetting is one output slot of a profile. Output is a glob pattern
// matched against connector names, identities and serials; the remaining
// fields mirror wlr-randr's options and are passed through unchanged.
type OutputSetting struct {
	Output string `toml:"output" yaml:"output"`

	On        bool   `toml:"on" yaml:"on"`
	Mode      string `toml:"mode" yaml:"mode"`
	Preferred bool   `toml:"preferred" yaml:"preferred"`

	Pos     string `toml:"pos" yaml:"pos"`
	LeftOf  string `toml:"left_of" yaml:"left_of"`
	RightOf string `toml:"right_of" yaml:"right_of"`
	Above   string `toml:"above" yaml:"above"`
	Below   string `toml:"below" yaml:"below"`

	Transform    string   `toml:"transform" yaml:"transform"`
	Scale        *float64 `toml:"scale" yaml:"scale"`
	AdaptiveSync *bool    `toml:"adaptive_sync" yaml:"adaptive_sync"`
}

// Profile is a named target configuration plus commands to run after it
// has been applied.
type Profile struct {
	// Name is an optional human readable label.
	Name     string          `toml:"name" yaml:"name"`
	Exec     []string        `toml:"exec" yaml:"exec"`
	Settings []OutputSetting `toml:"settings" yaml:"settings"`
}

// Config is an immutable snapshot of the profile file.
type Config struct {
	Profiles map[string]Profile `toml:"profile" yaml:"profile"`

	// profile ids in the order they were declared in the file
	order []string
	path  string
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// ProfileIDs returns the profile ids in declaration order. Profiles the
// decoder could not order (e.g. set programmatically) follow sorted by id.
func (c *Config) ProfileIDs() []string {
	ids := make([]string, 0, len(c.Profiles))
	seen := make(map[string]bool, len(c.Profiles))
	for _, id := range c.order {
		if _, ok := c.Profiles[id]; ok && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	var rest []string
	for id := range c.Profiles {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

// Profile looks up a profile by id.
func (c *Config) Profile(id string) (Profile, bool) {
	p, ok := c.Profiles[id]
	return p, ok
}

// DefaultPath returns $XDG_CONFIG_HOME/display-profiled/config.toml,
// falling back to ~/.config.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "display-profiled", "config.toml")
}
