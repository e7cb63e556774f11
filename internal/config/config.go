// Package config loads the optional pltcall configuration file. It holds
// settings a user wants to stop repeating on every invocation (a symbol
// blocklist, a default output directory, a default color mode, a default
// worker count). Color and Jobs are overridden by command-line flags;
// OutputDir and SymbolBlocklist are set only through the file.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ColorMode selects when ANSI colorization is applied.
type ColorMode string

const (
	ColorAuto  ColorMode = "auto"
	ColorNever ColorMode = "never"
	ColorAlways ColorMode = "always"
)

// Config is the on-disk shape of pltcall's config file.
type Config struct {
	// Color is the default color mode, overridden by --force-color/--no-color.
	Color ColorMode `yaml:"color"`

	// OutputDir is the default directory for -o when -o is a bare
	// filename rather than a path.
	OutputDir string `yaml:"output_dir"`

	// Jobs is the default parallel section-scan worker count; 0 or
	// unset means scan sequentially.
	Jobs int `yaml:"jobs"`

	// SymbolBlocklist names PLT-resolved symbols to omit from gadget
	// output entirely (e.g. noisy libc internals a user never cares
	// about finding a gadget to).
	SymbolBlocklist []string `yaml:"symbol_blocklist"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{Color: ColorAuto}
}

// Load reads the config file at path. A missing file is not an error;
// Default() is returned instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Color == "" {
		cfg.Color = ColorAuto
	}
	return cfg, nil
}

// DefaultPath returns $PLTCALL_CONFIG if set, else
// $XDG_CONFIG_HOME/pltcall/config.yaml, falling back to
// ~/.config/pltcall/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("PLTCALL_CONFIG"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pltcall", "config.yaml")
}

// Blocked reports whether name appears in the symbol blocklist.
func (c *Config) Blocked(name string) bool {
	for _, b := range c.SymbolBlocklist {
		if b == name {
			return true
		}
	}
	return false
}
