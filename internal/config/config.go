// Package config owns runtime configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var ErrDriverPathRequired = errors.New("config: driver path required")

// DriverConfig describes how to launch and talk to the driver process.
type DriverConfig struct {
	Path           string            `toml:"path"`
	Args           []string          `toml:"args"`
	Env            map[string]string `toml:"env"`
	LaunchTimeout  Duration          `toml:"launch_timeout"`
	DefaultTimeout Duration          `toml:"default_timeout"`
}

// LaunchTimeoutOrDefault returns the configured launch timeout.
func (c DriverConfig) LaunchTimeoutOrDefault() time.Duration {
	return time.Duration(c.LaunchTimeout)
}

// DefaultTimeoutOrDefault returns the wait timeout applied when callers pass
// none.
func (c DriverConfig) DefaultTimeoutOrDefault() time.Duration {
	return time.Duration(c.DefaultTimeout)
}

func LoadDriverConfig(path string) (DriverConfig, error) {
	var cfg DriverConfig
	if err := loadToml(path, &cfg); err != nil {
		return DriverConfig{}, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return DriverConfig{}, err
	}
	return cfg, nil
}

func (c DriverConfig) WithDefaults() DriverConfig {
	out := c
	if out.LaunchTimeout == 0 {
		out.LaunchTimeout = Duration(30 * time.Second)
	}
	if out.DefaultTimeout == 0 {
		out.DefaultTimeout = Duration(30 * time.Second)
	}
	if out.Env == nil {
		out.Env = map[string]string{}
	}
	return out
}

func (c DriverConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrDriverPathRequired
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// Duration accepts TOML duration strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
