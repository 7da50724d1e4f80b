package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/darkit/biosverify"
)

func newTestLoader(t *testing.T, env map[string]string, searchPaths ...string) *Loader {
	t.Helper()
	l := NewLoader().WithSearchPaths(searchPaths...).WithDotEnv("")
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := newTestLoader(t, nil, t.TempDir()).Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source != "dmidecode" || cfg.Probe.Sudo != "auto" || cfg.Step.Priority != 90 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "biosverify.yaml", `
source: sysfs
sysfs:
  root: /tmp/dmi
step:
  priority: 50
logging:
  level: debug
`)

	cfg, err := newTestLoader(t, nil, t.TempDir(), dir).Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source != "sysfs" || cfg.Sysfs.Root != "/tmp/dmi" || cfg.Step.Priority != 50 || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// 文件中未出现的字段保留默认值
	if cfg.Probe.Command != "dmidecode" || cfg.Probe.Timeout != "10s" {
		t.Fatalf("defaults lost: %+v", cfg.Probe)
	}
}

func TestLoadExplicitJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.json", `{"source": "ghw", "probe": {"sudo": "never"}}`)

	cfg, err := newTestLoader(t, nil).Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source != "ghw" || cfg.Probe.Sudo != "never" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := newTestLoader(t, nil).Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	env := map[string]string{
		"BIOSVERIFY_SOURCE":        "sysfs",
		"BIOSVERIFY_PROBE_SUDO":    "always",
		"BIOSVERIFY_PROBE_TIMEOUT": "3s",
		"BIOSVERIFY_STEP_PRIORITY": "10",
		"BIOSVERIFY_LOG_FORMAT":    "json",
	}
	cfg, err := newTestLoader(t, env, t.TempDir()).Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source != "sysfs" || cfg.Probe.Sudo != "always" || cfg.Probe.Timeout != "3s" || cfg.Step.Priority != 10 || cfg.Logging.Format != "json" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadEnvBadPriority(t *testing.T) {
	env := map[string]string{"BIOSVERIFY_STEP_PRIORITY": "high"}
	if _, err := newTestLoader(t, env, t.TempDir()).Load(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := writeFile(t, dir, ".env", "BIOSVERIFY_TEST_DOTENV_SOURCE=ghw\n")
	t.Cleanup(func() { os.Unsetenv("BIOSVERIFY_TEST_DOTENV_SOURCE") })

	l := NewLoader().WithSearchPaths(dir).WithDotEnv(dotenv)
	if err := l.loadDotEnv(); err != nil {
		t.Fatalf("loadDotEnv() error: %v", err)
	}
	if got := os.Getenv("BIOSVERIFY_TEST_DOTENV_SOURCE"); got != "ghw" {
		t.Fatalf("dotenv value = %q", got)
	}

	if err := NewLoader().WithDotEnv(filepath.Join(dir, "missing.env")).loadDotEnv(); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"source", func(c *Config) { c.Source = "redfish" }},
		{"sudo", func(c *Config) { c.Probe.Sudo = "maybe" }},
		{"timeout", func(c *Config) { c.Probe.Timeout = "soon" }},
		{"negative timeout", func(c *Config) { c.Probe.Timeout = "-1s" }},
		{"priority", func(c *Config) { c.Step.Priority = 0 }},
		{"level", func(c *Config) { c.Logging.Level = "trace" }},
		{"format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestNewManagerFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "product_name", "PowerEdge R630\n")
	writeFile(t, dir, "bios_version", "2.3.4\n")

	cfg := Default()
	cfg.Source = "sysfs"
	cfg.Sysfs.Root = dir
	cfg.Step.Priority = 42

	logger, _, err := NewLogger(LoggingConfig{Level: "error"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	manager, err := cfg.NewManager(nil, logger)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	if got := manager.CleanSteps(nil)[0].Priority; got != 42 {
		t.Fatalf("priority = %d", got)
	}

	node, err := ParseNode([]byte(`{"uuid": "n1", "extra": {"system_vendor": {"product_name": "PowerEdge R630", "bios_version": "2.3.4"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := manager.ExecuteCleanStep(context.Background(), biosverify.StepVerifyBIOSVersion, node)
	if err != nil || !ok {
		t.Fatalf("ExecuteCleanStep() = %v, %v", ok, err)
	}
}

func TestNewSourceDMIDecodeSettings(t *testing.T) {
	cfg := Default()
	cfg.Probe.Command = "/usr/sbin/dmidecode"
	cfg.Probe.Sudo = "never"
	cfg.Probe.Timeout = "2s"

	source, err := cfg.NewSource(nil)
	if err != nil {
		t.Fatalf("NewSource() error: %v", err)
	}
	dmi, ok := source.(*biosverify.DMIDecodeSource)
	if !ok {
		t.Fatalf("source = %T", source)
	}
	if dmi.Prober.Command != "/usr/sbin/dmidecode" || dmi.Prober.Sudo != biosverify.SudoNever || dmi.Prober.Timeout.String() != "2s" {
		t.Fatalf("prober = %+v", dmi.Prober)
	}
}

func TestParseNodeYAML(t *testing.T) {
	node, err := ParseNode([]byte(`
uuid: 1be26c0b-03f2-4d2e-ae87-c02d7f33c123
extra:
  system_vendor:
    product_name: PowerEdge R630
    bios_version: "2.10"
    disable_bios_version_check: "false"
`))
	if err != nil {
		t.Fatalf("ParseNode() error: %v", err)
	}
	exp, err := biosverify.ResolveExpectation(node)
	if err != nil {
		t.Fatalf("ResolveExpectation() error: %v", err)
	}
	if exp.ProductName != "PowerEdge R630" || exp.BIOSVersion != "2.10" {
		t.Fatalf("expectation = %+v", exp)
	}
}

func TestParseNodeUnquotedVersionRejected(t *testing.T) {
	node, err := ParseNode([]byte("extra:\n  system_vendor:\n    product_name: R630\n    bios_version: 2.10\n"))
	if err != nil {
		t.Fatalf("ParseNode() error: %v", err)
	}
	_, err = biosverify.ResolveExpected(node, biosverify.PropertyBIOSVersion)
	if err == nil || !strings.Contains(err.Error(), "must be a string") {
		t.Fatalf("expected string type error, got %v", err)
	}
}

func TestLoadNode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "node.json", `{"uuid": "n1", "extra": {}}`)
	node, err := LoadNode(path)
	if err != nil || node.UUID != "n1" {
		t.Fatalf("LoadNode() = %+v, %v", node, err)
	}
	if _, err := LoadNode(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, closer, err := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, buf)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "node", "n1")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("log output = %q", out)
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biosverify.log")
	logger, closer, err := NewLogger(LoggingConfig{File: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("written")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "written") {
		t.Fatalf("log file = %q, %v", data, err)
	}
}

func TestNewManagerUpdaterRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "product_name", "PowerEdge R630\n")
	writeFile(t, dir, "bios_version", "1.0\n")

	cfg := Default()
	cfg.Source = "sysfs"
	cfg.Sysfs.Root = dir
	logger, _, err := NewLogger(LoggingConfig{Level: "error"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	manager, err := cfg.NewManager(nil, logger)
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	node, err := ParseNode([]byte(`{"uuid": "n1", "extra": {"system_vendor": {"product_name": "PowerEdge R630", "bios_version": "2.3.4"}}}`))
	if err != nil {
		t.Fatal(err)
	}

	// 未注册更新器时回落到人工更新
	_, err = manager.ExecuteCleanStep(context.Background(), biosverify.StepVerifyBIOSVersion, node)
	if biosverify.CodeOf(err) != biosverify.ErrUpdateUnsupported {
		t.Fatalf("expected update unsupported, got %v", err)
	}

	registry := UpdaterRegistry(manager)
	if registry == nil {
		t.Fatal("manager was not built with an updater registry")
	}
	var flashed string
	registry.Register("PowerEdge R630", biosverify.UpdaterFunc(func(_ context.Context, _ biosverify.VendorInfo, version string) error {
		flashed = version
		return nil
	}))
	ok, err := manager.ExecuteCleanStep(context.Background(), biosverify.StepVerifyBIOSVersion, node)
	if err != nil || !ok || flashed != "2.3.4" {
		t.Fatalf("ExecuteCleanStep() = %v, %v (flashed %q)", ok, err, flashed)
	}

	custom, err := cfg.NewManager(biosverify.ManualUpdater{}, logger)
	if err != nil {
		t.Fatal(err)
	}
	if UpdaterRegistry(custom) != nil {
		t.Fatal("explicit updater should be kept")
	}
}
