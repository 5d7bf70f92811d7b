package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/host"
	"github.com/snowmerak/hubplug/lib/trace"
)

// Config describes the development host and the plugins it runs.
type Config struct {
	DataDir    string                      `yaml:"data_dir"`
	Store      string                      `yaml:"store"`
	Log        LogConfig                   `yaml:"log"`
	Trace      TraceConfig                 `yaml:"trace"`
	Timeouts   TimeoutConfig               `yaml:"timeouts"`
	Recipients map[int32]map[string]string `yaml:"recipients"`
	Plugins    map[string]PluginConfig     `yaml:"plugins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TraceConfig enables frame recording when Dir is set.
type TraceConfig struct {
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"`
}

type TimeoutConfig struct {
	Answer time.Duration `yaml:"answer"`
	Stop   time.Duration `yaml:"stop"`
}

// PluginConfig is the configuration block for a single plugin.
type PluginConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Path      string   `yaml:"path"`
	Version   string   `yaml:"version"`
	Transport string   `yaml:"transport"`
	Args      []string `yaml:"args"`
	Env       []string `yaml:"env"`

	ManualDeviceCreation bool `yaml:"manual_device_creation"`

	// Configuration is handed to the plugin when it asks for it.
	// ConfigurationFile, a JSON or JSONC file, is used when Configuration is empty.
	Configuration     map[string]any `yaml:"configuration"`
	ConfigurationFile string         `yaml:"configuration_file"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	hostDefaults := host.DefaultOptions()
	return Config{
		DataDir: "data",
		Store:   "data/hub.db",
		Log:     LogConfig{Level: "INFO", Format: "text"},
		Trace:   TraceConfig{Compression: trace.CompressionZstd.String()},
		Timeouts: TimeoutConfig{
			Answer: hostDefaults.AnswerTimeout,
			Stop:   hostDefaults.StopTimeout,
		},
		Plugins: map[string]PluginConfig{},
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read host config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal host config: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginConfig{}
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Store == "" {
		return errors.New("store path cannot be empty")
	}
	if c.DataDir == "" {
		return errors.New("data dir cannot be empty")
	}
	if c.Timeouts.Answer < 0 || c.Timeouts.Stop < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if c.Trace.Dir != "" {
		if _, err := trace.ParseCompression(c.Trace.Compression); err != nil {
			return err
		}
	}
	for name, p := range c.Plugins {
		if name == "" {
			return errors.New("plugin name cannot be empty")
		}
		if !p.Enabled {
			continue
		}
		if p.Path == "" {
			return fmt.Errorf("plugin %s path cannot be empty when enabled", name)
		}
		switch host.TransportType(p.Transport) {
		case "", host.TransportStdio, host.TransportUnixSocket:
		default:
			return fmt.Errorf("plugin %s: unknown transport %q", name, p.Transport)
		}
	}
	return nil
}

// LoadConfiguration returns the configuration container of the plugin.
func (p PluginConfig) LoadConfiguration() (*datacontainer.Container, error) {
	if len(p.Configuration) > 0 {
		return datacontainer.FromValue(p.Configuration)
	}
	if p.ConfigurationFile == "" {
		return datacontainer.New(), nil
	}
	raw, err := os.ReadFile(p.ConfigurationFile)
	if err != nil {
		return nil, fmt.Errorf("read plugin configuration: %w", err)
	}
	return datacontainer.Parse(string(raw))
}
