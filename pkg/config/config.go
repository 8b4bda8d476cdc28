// Package config loads beatbox settings from YAML. Built in defaults are
// embedded and a user file overrides them key by key.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		MIDI     MIDIConfig     `yaml:"midi"`
		Server   ServerConfig   `yaml:"server"`
		Patterns PatternsConfig `yaml:"patterns"`
		Log      LogConfig      `yaml:"log"`
	}

	MIDIConfig struct {
		// Port is the output port name, empty for the first one
		Port string `yaml:"port"`
	}

	ServerConfig struct {
		Port int `yaml:"port"`
	}

	PatternsConfig struct {
		Dir     string `yaml:"dir"`
		Default string `yaml:"default"`
	}

	LogConfig struct {
		Level string `yaml:"level"`
	}
)

//go:embed default.yml
var defaultYaml []byte

// Default returns the embedded defaults
func Default() Config {
	var c Config
	if err := yaml.Unmarshal(defaultYaml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

// DefaultPath is the per-user config file, beatbox/config.yml under the
// user config directory
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "beatbox", "config.yml"), nil
}

// Load reads path over the defaults. An empty path means DefaultPath, and a
// missing default file is not an error.
func Load(path string) (Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return c, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Level returns the configured log level, info when it does not parse
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// PatternPath resolves name against the patterns directory. Absolute names
// are returned as is, and an empty name selects the default pattern file.
func (c Config) PatternPath(name string) string {
	if name == "" {
		name = c.Patterns.Default
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Patterns.Dir, name)
}
