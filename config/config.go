// Package config loads the optional YAML file that tells ppbench where each
// backend's guest binary and host program live.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/weiihann/ppbench/backend"
)

// Engines.
const (
	EngineReference = "reference"
	EngineProcess   = "process"
)

// Backend is the per-backend section of the file.
type Backend struct {
	ELF  string   `yaml:"elf"`
	Host string   `yaml:"host"`
	Args []string `yaml:"args"`
	Env  []string `yaml:"env"`
}

// Config is the file's top-level document. Zero values mean "use the
// command-line flag or its default".
type Config struct {
	Engine       string             `yaml:"engine"`
	Mode         string             `yaml:"mode"`
	ELFDir       string             `yaml:"elf_dir"`
	HarnessesDir string             `yaml:"harnesses_dir"`
	ProofDir     string             `yaml:"proof_dir"`
	SamplePath   string             `yaml:"sample_path"`
	Parallel     int                `yaml:"parallel"`
	Timeout      time.Duration      `yaml:"timeout"`
	Backends     map[string]Backend `yaml:"backends"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate rejects unknown engines, modes and backends.
func (c *Config) Validate() error {
	switch c.Engine {
	case "", EngineReference, EngineProcess:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}

	if c.Mode != "" {
		if _, err := backend.ParseMode(c.Mode); err != nil {
			return err
		}
	}

	if c.Parallel < 0 {
		return fmt.Errorf("parallel must not be negative, got %d", c.Parallel)
	}

	for name := range c.Backends {
		if _, err := backend.Lookup(name); err != nil {
			return err
		}
	}

	return nil
}

// ELFPath returns the guest binary for name: the explicit path from the
// file, else the backend's default file name under elfDir.
func (c *Config) ELFPath(name, elfDir string) (string, error) {
	if b, ok := c.Backends[name]; ok && b.ELF != "" {
		return b.ELF, nil
	}

	spec, err := backend.Lookup(name)
	if err != nil {
		return "", err
	}

	if elfDir == "" {
		return "", nil
	}

	return spec.ELFPath(elfDir), nil
}

// Host returns the configured host for name, if any.
func (c *Config) Host(name string) (Backend, bool) {
	b, ok := c.Backends[name]
	if !ok || b.Host == "" {
		return Backend{}, false
	}

	return b, true
}
