package config

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	dbf "github.com/Ulysses-Xu/go-xbase"
)

// Config is the dbfutil configuration file.
type Config struct {
	// Encoding overrides the codepage mark of every opened table. Empty
	// means use the header.
	Encoding string `yaml:"encoding"`
	Trim     string `yaml:"trim"`
	Strict   bool   `yaml:"strict"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Trim:     "end",
		LogLevel: "warn",
	}
}

// LoadConfig loads configuration from the specified path. Keys missing from
// the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return config, nil
}

// SaveConfig writes the configuration as YAML.
func SaveConfig(config *Config, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	return errors.Wrap(os.WriteFile(configPath, data, 0644), "failed to write config file")
}

// Level parses LogLevel.
func (c *Config) Level() (log.Level, error) {
	if c.LogLevel == "" {
		return log.WarnLevel, nil
	}
	return log.ParseLevel(c.LogLevel)
}

// Options converts the configuration into table options. The logger is the
// caller's so diagnostics reach the same sink as the rest of the tool.
func (c *Config) Options(logger log.FieldLogger) (*dbf.Options, error) {
	trim, err := dbf.ParseTrimOption(c.Trim)
	if err != nil {
		return nil, err
	}
	opts := &dbf.Options{
		Trim:   trim,
		Strict: c.Strict,
		Logger: logger,
	}
	if c.Encoding != "" {
		if opts.Encoding, err = dbf.NewEncoding(c.Encoding); err != nil {
			return nil, err
		}
	}
	return opts, nil
}
