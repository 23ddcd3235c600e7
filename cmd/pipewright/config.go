package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pipewright/pipewright/internal/config"
)

// profilesFile is a catalog of named driver configurations, for hosts that
// switch between several driver installations.
type profilesFile struct {
	Default  string                         `toml:"default"`
	Profiles map[string]config.DriverConfig `toml:"profiles"`
}

// resolveDriverConfig picks the config source and layers the command line on
// top: -driver and trailing args win over whatever the file says.
func resolveDriverConfig(configPath, profilesPath, profileName, driverOverride string, extraArgs []string) (config.DriverConfig, error) {
	var (
		cfg config.DriverConfig
		err error
	)
	switch {
	case configPath != "" && profilesPath != "":
		return config.DriverConfig{}, errors.New("pipewright: -config and -profiles are mutually exclusive")
	case configPath != "":
		cfg, err = config.LoadDriverConfig(configPath)
	case profilesPath != "":
		cfg, err = loadProfile(profilesPath, profileName)
	default:
		cfg = config.DriverConfig{}.WithDefaults()
	}
	if err != nil {
		return config.DriverConfig{}, err
	}

	if strings.TrimSpace(driverOverride) != "" {
		cfg.Path = strings.TrimSpace(driverOverride)
	}
	if len(extraArgs) > 0 {
		cfg.Args = append(cfg.Args, extraArgs...)
	}

	if err := cfg.Validate(); err != nil {
		return config.DriverConfig{}, err
	}
	return cfg, nil
}

func loadProfile(path, name string) (config.DriverConfig, error) {
	var raw profilesFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return config.DriverConfig{}, fmt.Errorf("load driver profiles: %w", err)
	}
	if name == "" {
		name = strings.TrimSpace(raw.Default)
	}
	if name == "" {
		return config.DriverConfig{}, fmt.Errorf("driver profiles %q: no profile selected and no default set", path)
	}
	cfg, ok := raw.Profiles[name]
	if !ok {
		return config.DriverConfig{}, fmt.Errorf("driver profiles %q: unknown profile %q", path, name)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return config.DriverConfig{}, err
	}
	return cfg, nil
}
