package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models losdharvest.yml.
type Config struct {
	Source struct {
		URL string `yaml:"url"`
		// Accept is the negotiated media type sent on every fetch.
		Accept string `yaml:"accept"`
		// RDFFormat is the serialization assumed when the source does
		// not declare one.
		RDFFormat string `yaml:"rdf_format"`
		// Profiles lists the enabled mapping profiles, applied in order
		// until one succeeds.
		Profiles []string `yaml:"profiles"`
		// GUIDPrefix prefixes identity keys with the source URL. The key
		// stays the dataset slug otherwise; either way it changes when
		// the upstream renames a dataset.
		GUIDPrefix bool `yaml:"guid_prefix"`
		// MaxPages bounds view-index pagination.
		MaxPages int `yaml:"max_pages"`
	} `yaml:"source"`
	Fetch struct {
		MaxBytes       int64 `yaml:"max_bytes"`
		TimeoutSeconds int   `yaml:"timeout_seconds"`
	} `yaml:"fetch"`
	Portal struct {
		Maintainer      string            `yaml:"maintainer"`
		MaintainerEmail string            `yaml:"maintainer_email"`
		Licenses        map[string]string `yaml:"licenses"`
	} `yaml:"portal"`
	API struct {
		JWTSecret string   `yaml:"jwt_secret"`
		Keys      []string `yaml:"keys"`
	} `yaml:"api"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with losdharvest config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("config.source.url is required")
	}
	if len(c.Source.Profiles) == 0 {
		return fmt.Errorf("config.source.profiles must list at least one profile")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("config.fetch.max_bytes must be positive")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.fetch.timeout_seconds must be positive")
	}
	if c.Source.MaxPages <= 0 {
		return fmt.Errorf("config.source.max_pages must be positive")
	}
	return nil
}

// Timeout returns the fetch timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "losdharvest.yml")
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `source:
  url: https://ld.stadt-zuerich.ch/statistics
  accept: text/turtle
  rdf_format: text/turtle
  profiles: [stadtzh_losd]
  guid_prefix: false
  max_pages: 50

fetch:
  max_bytes: 52428800
  timeout_seconds: 15

portal:
  maintainer: Open Data Zürich
  maintainer_email: opendata@zuerich.ch
  licenses:
    "http://creativecommons.org/licenses/by/3.0/": cc-by
`
