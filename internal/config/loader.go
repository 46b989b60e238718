package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferd/internal/common/fsutil"
)

// Config holds runtime parameters for the scheduler host.
// Zero values mean "unspecified" and are filled by lower-precedence sources.
type Config struct {
	Model                 string   `json:"model" yaml:"model" toml:"model"`
	Plugin                string   `json:"plugin" yaml:"plugin" toml:"plugin"`
	PluginsDir            string   `json:"plugins_dir" yaml:"plugins_dir" toml:"plugins_dir"`
	Backend               string   `json:"backend" yaml:"backend" toml:"backend"`
	ORTLibraryPath        string   `json:"ort_library_path" yaml:"ort_library_path" toml:"ort_library_path"`
	Diagnostics           bool     `json:"diagnostics" yaml:"diagnostics" toml:"diagnostics"`
	ShowModel             bool     `json:"show_model" yaml:"show_model" toml:"show_model"`
	ReleaseOnInferFailure bool     `json:"release_on_infer_failure" yaml:"release_on_infer_failure" toml:"release_on_infer_failure"`
	MetricsAddr           string   `json:"metrics_addr" yaml:"metrics_addr" toml:"metrics_addr"`
	CORSOrigins           []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel              string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat             string   `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Environment variables consulted by Env.
const (
	EnvModel      = "INFERD_MODEL"
	EnvPlugin     = "INFERD_PLUGIN"
	EnvPluginsDir = "INFERD_PLUGINS_DIR"
)

// Defaults returns the built-in values.
func Defaults() Config {
	return Config{
		PluginsDir: "~/.inferd/plugins",
		Backend:    "onnx",
		LogLevel:   "info",
		LogFormat:  "console",
	}
}

// Env reads the INFERD_* variables through getenv.
func Env(getenv func(string) string) Config {
	return Config{
		Model:      getenv(EnvModel),
		Plugin:     getenv(EnvPlugin),
		PluginsDir: getenv(EnvPluginsDir),
	}
}

// Overlay returns c with every non-zero field of o applied on top.
func (c Config) Overlay(o Config) Config {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&c.Model, o.Model)
	str(&c.Plugin, o.Plugin)
	str(&c.PluginsDir, o.PluginsDir)
	str(&c.Backend, o.Backend)
	str(&c.ORTLibraryPath, o.ORTLibraryPath)
	str(&c.MetricsAddr, o.MetricsAddr)
	str(&c.LogLevel, o.LogLevel)
	str(&c.LogFormat, o.LogFormat)
	c.Diagnostics = c.Diagnostics || o.Diagnostics
	c.ShowModel = c.ShowModel || o.ShowModel
	c.ReleaseOnInferFailure = c.ReleaseOnInferFailure || o.ReleaseOnInferFailure
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = append([]string(nil), o.CORSOrigins...)
	}
	return c
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
