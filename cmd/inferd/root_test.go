package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolvePrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "inferd.yaml")
	if err := os.WriteFile(cfgPath, []byte("model: /file/model.onnx\nplugin: file-plugin\ndiagnostics: true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	opts := &rootOptions{getenv: envMap(map[string]string{
		"INFERD_MODEL":       "/env/model.onnx",
		"INFERD_PLUGIN":      "env-plugin",
		"INFERD_PLUGINS_DIR": "/env/plugins",
	})}
	root := newRootCmdWith(opts)
	run, _, err := root.Find([]string{"run"})
	if err != nil {
		t.Fatalf("find run: %v", err)
	}
	if err := run.ParseFlags([]string{"--config", cfgPath, "--model", "/flag/model.onnx", "--metrics-addr", ":9100"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := opts.resolve(run)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Model != "/flag/model.onnx" {
		t.Fatalf("flag should win, got model %q", cfg.Model)
	}
	if cfg.Plugin != "file-plugin" {
		t.Fatalf("config file should beat env, got plugin %q", cfg.Plugin)
	}
	if cfg.PluginsDir != "/env/plugins" {
		t.Fatalf("env should beat default, got plugins dir %q", cfg.PluginsDir)
	}
	if !cfg.Diagnostics || cfg.MetricsAddr != ":9100" || cfg.Backend != "onnx" {
		t.Fatalf("unexpected merged config %+v", cfg)
	}
}

func TestResolveFalseFlagOverridesFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "inferd.yaml")
	body := "diagnostics: true\nrelease_on_infer_failure: true\nshow_model: true\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	opts := &rootOptions{getenv: envMap(nil)}
	root := newRootCmdWith(opts)
	run, _, _ := root.Find([]string{"run"})
	args := []string{"--config", cfgPath, "--diagnostics=false", "--release-on-infer-failure=false"}
	if err := run.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := opts.resolve(run)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Diagnostics || cfg.ReleaseOnInferFailure {
		t.Fatalf("explicit false flags should win over the file, got %+v", cfg)
	}
	if !cfg.ShowModel {
		t.Fatalf("unset flag should keep the file value")
	}
}

func TestResolveEnvOnly(t *testing.T) {
	opts := &rootOptions{getenv: envMap(map[string]string{"INFERD_MODEL": "/env/model.onnx", "INFERD_PLUGIN": "template"})}
	root := newRootCmdWith(opts)
	run, _, _ := root.Find([]string{"run"})
	if err := run.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := opts.resolve(run)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Model != "/env/model.onnx" || cfg.Plugin != "template" || cfg.PluginsDir != "~/.inferd/plugins" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestResolveBadConfigFile(t *testing.T) {
	opts := &rootOptions{getenv: envMap(nil)}
	root := newRootCmdWith(opts)
	run, _, _ := root.Find([]string{"run"})
	if err := run.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := opts.resolve(run); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestPluginsCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "yolo.so"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	root := newRootCmd(envMap(nil))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"plugins", "--plugins-dir", dir})
	if err := root.Execute(); err != nil {
		t.Fatalf("plugins: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "template") || !strings.Contains(got, "built-in") {
		t.Fatalf("built-in template plugin not listed:\n%s", got)
	}
	if !strings.Contains(got, filepath.Join(dir, "yolo.so")) {
		t.Fatalf("shared object not listed:\n%s", got)
	}
}

func TestPluginsCommandMissingDir(t *testing.T) {
	root := newRootCmd(envMap(nil))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"plugins", "--plugins-dir", filepath.Join(t.TempDir(), "nope")})
	if err := root.Execute(); err != nil {
		t.Fatalf("missing plugins dir should not fail: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd(envMap(nil))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "inferd "+version) {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRunRequiresModelAndPlugin(t *testing.T) {
	root := newRootCmd(envMap(nil))
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--plugin", "template"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "no model") {
		t.Fatalf("expected missing model error, got %v", err)
	}
	root = newRootCmd(envMap(map[string]string{"INFERD_MODEL": "/m.onnx"}))
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "no plugin") {
		t.Fatalf("expected missing plugin error, got %v", err)
	}
}

func TestNewLoggerValidation(t *testing.T) {
	opts := &rootOptions{getenv: envMap(nil)}
	root := newRootCmdWith(opts)
	run, _, _ := root.Find([]string{"run"})
	_ = run.ParseFlags([]string{"--log-level", "loud"})
	cfg, err := opts.resolve(run)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := newLogger(cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	cfg.LogLevel, cfg.LogFormat = "debug", "xml"
	if _, err := newLogger(cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected invalid format error")
	}
	cfg.LogFormat = "json"
	var buf bytes.Buffer
	l, err := newLogger(cfg, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	l.Debug().Msg("hello")
	if !strings.Contains(buf.String(), `"message":"hello"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}

func TestInspectRequiresModel(t *testing.T) {
	root := newRootCmd(envMap(nil))
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"inspect"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "no model") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}
