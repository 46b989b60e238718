package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/plugins/template"
	"inferd/internal/registry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions carries flag values shared by subcommands.
type rootOptions struct {
	getenv     func(string) string
	configPath string
	flags      config.Config
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	return newRootCmdWith(&rootOptions{getenv: getenv})
}

// newRootCmdWith constructs the command tree bound to opts.
func newRootCmdWith(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Plugin-hosted inference scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&opts.flags.LogLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	pf.StringVar(&opts.flags.LogFormat, "log-format", "", "Log format: console|json (default console)")
	pf.StringVar(&opts.flags.PluginsDir, "plugins-dir", "", "Directory of plugin *.so files (defaults INFERD_PLUGINS_DIR)")

	root.AddCommand(newRunCmd(opts), newInspectCmd(opts), newPluginsCmd(opts), newVersionCmd())
	return root
}

// modelFlags registers the flags shared by run and inspect.
func modelFlags(cmd *cobra.Command, opts *rootOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.flags.Model, "model", "", "Model weights: local path or gs://bucket/object (defaults INFERD_MODEL)")
	f.StringVar(&opts.flags.Backend, "backend", "", "Model backend (default onnx)")
	f.StringVar(&opts.flags.ORTLibraryPath, "ort-lib", "", "Path to the onnxruntime shared library")
	f.BoolVar(&opts.flags.ShowModel, "show-model", false, "Log every model tensor attribute after load")
}

// resolve merges built-in defaults, environment, config file and explicitly
// set flags, in increasing precedence.
func (o *rootOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults().Overlay(config.Env(o.getenv))
	if o.configPath != "" {
		fileCfg, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = cfg.Overlay(fileCfg)
	}
	set := config.Config{}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	str := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	str("model", &set.Model, o.flags.Model)
	str("plugin", &set.Plugin, o.flags.Plugin)
	str("plugins-dir", &set.PluginsDir, o.flags.PluginsDir)
	str("backend", &set.Backend, o.flags.Backend)
	str("ort-lib", &set.ORTLibraryPath, o.flags.ORTLibraryPath)
	str("metrics-addr", &set.MetricsAddr, o.flags.MetricsAddr)
	str("log-level", &set.LogLevel, o.flags.LogLevel)
	str("log-format", &set.LogFormat, o.flags.LogFormat)
	if changed("cors-origin") {
		set.CORSOrigins = o.flags.CORSOrigins
	}
	cfg = cfg.Overlay(set)
	// Overlay only turns booleans on; an explicit --flag=false must win too.
	boolean := func(name string, dst *bool, v bool) {
		if changed(name) {
			*dst = v
		}
	}
	boolean("diagnostics", &cfg.Diagnostics, o.flags.Diagnostics)
	boolean("show-model", &cfg.ShowModel, o.flags.ShowModel)
	boolean("release-on-infer-failure", &cfg.ReleaseOnInferFailure, o.flags.ReleaseOnInferFailure)
	return cfg, nil
}

// newLogger builds the process logger from the resolved config.
func newLogger(cfg config.Config, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if w == nil {
		w = os.Stderr
	}
	switch cfg.LogFormat {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// newRegistry loads plugins from the plugins directory and registers the
// built-in ones.
func newRegistry(cfg config.Config, log *zerolog.Logger) (*registry.Registry, error) {
	reg := registry.New(registry.DirLoader{Dir: cfg.PluginsDir}, log)
	if err := reg.Register(template.New(template.Options{Logger: log})); err != nil {
		return nil, err
	}
	return reg, nil
}
