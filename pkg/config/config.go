// Package config loads the optional YAML defaults file. Flags given on the
// command line always win; the file only supplies defaults for flags the
// user did not set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is consulted when --config is not given. A missing file there
// is not an error.
const DefaultPath = "/etc/schedtop.yaml"

// File mirrors the sampler's CLI surface.
type File struct {
	// Delay is the inter-sample delay in seconds.
	Delay float64 `yaml:"delay"`

	// Repeat is the number of samples to take.
	Repeat int `yaml:"repeat"`

	// Period is the total run duration in seconds (alternative to repeat).
	Period int `yaml:"period"`

	// Tids enables thread-level enumeration.
	Tids bool `yaml:"tids"`

	// FromCgroup scopes task discovery to the pids cgroup hierarchy.
	FromCgroup bool `yaml:"from_cgroup"`

	// Debug logs recoverable per-task read errors.
	Debug bool `yaml:"debug"`
}

// Defaults returns the built-in defaults, matching the flag defaults.
func Defaults() File {
	return File{
		Delay:  1.0,
		Repeat: 1,
	}
}

// Load reads path, or DefaultPath when path is empty. An absent file yields
// the defaults; an unreadable or malformed file is an error.
func Load(path string) (File, error) {
	cfg := Defaults()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
