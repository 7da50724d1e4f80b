// Package config loads biosverify settings from a YAML (or JSON) file,
// an optional .env file and BIOSVERIFY_* environment variables, and wires
// them into a ready-to-run hardware manager.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/darkit/biosverify"
)

// Config 配置文件结构
type Config struct {
	Source  string        `yaml:"source"`
	Probe   ProbeConfig   `yaml:"probe"`
	Sysfs   SysfsConfig   `yaml:"sysfs"`
	Step    StepConfig    `yaml:"step"`
	Logging LoggingConfig `yaml:"logging"`
}

// ProbeConfig dmidecode 探测配置
type ProbeConfig struct {
	Command string `yaml:"command"`
	Sudo    string `yaml:"sudo"`
	Timeout string `yaml:"timeout"`
}

// SysfsConfig sysfs 信息源配置
type SysfsConfig struct {
	Root string `yaml:"root"`
}

// StepConfig 清理步骤配置
type StepConfig struct {
	Priority int `yaml:"priority"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Source: string(biosverify.SourceDMIDecode),
		Probe: ProbeConfig{
			Command: "dmidecode",
			Sudo:    string(biosverify.SudoAuto),
			Timeout: "10s",
		},
		Sysfs: SysfsConfig{Root: "/sys/class/dmi/id"},
		Step:  StepConfig{Priority: biosverify.DefaultStepPriority},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Loader 配置加载器
type Loader struct {
	searchPaths []string
	filename    string
	dotenv      string
	lookupEnv   func(string) (string, bool)
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	paths := []string{".", "./config"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".biosverify"))
	}
	paths = append(paths, "/etc/biosverify")
	return &Loader{
		searchPaths: paths,
		filename:    "biosverify",
		dotenv:      ".env",
		lookupEnv:   os.LookupEnv,
	}
}

// WithSearchPaths 设置搜索路径
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	l.searchPaths = paths
	return l
}

// WithFilename 设置配置文件名（不含扩展名）
func (l *Loader) WithFilename(filename string) *Loader {
	l.filename = filename
	return l
}

// WithDotEnv 设置 .env 文件路径，空串表示不加载
func (l *Loader) WithDotEnv(path string) *Loader {
	l.dotenv = path
	return l
}

// Load 加载配置：explicit 非空时只读该文件；否则按搜索路径查找，找不到则使用默认值。
// 之后依次应用 .env 与环境变量覆盖，并做校验。
func (l *Loader) Load(explicit string) (*Config, error) {
	cfg := Default()

	path := explicit
	if path == "" {
		path = l.find()
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}
	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) find() string {
	extensions := []string{".yaml", ".yml", ".json"}
	for _, dir := range l.searchPaths {
		for _, ext := range extensions {
			fullPath := filepath.Join(dir, l.filename+ext)
			if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
				return fullPath
			}
		}
	}
	return ""
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	// yaml.v3 同时接受 JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (l *Loader) loadDotEnv() error {
	if l.dotenv == "" {
		return nil
	}
	if _, err := os.Stat(l.dotenv); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}
	// godotenv.Load 不覆盖已存在的环境变量
	if err := godotenv.Load(l.dotenv); err != nil {
		return fmt.Errorf("config: load %s: %w", l.dotenv, err)
	}
	return nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	lookup := l.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	overrides := []struct {
		key   string
		field *string
	}{
		{"BIOSVERIFY_SOURCE", &cfg.Source},
		{"BIOSVERIFY_PROBE_COMMAND", &cfg.Probe.Command},
		{"BIOSVERIFY_PROBE_SUDO", &cfg.Probe.Sudo},
		{"BIOSVERIFY_PROBE_TIMEOUT", &cfg.Probe.Timeout},
		{"BIOSVERIFY_SYSFS_ROOT", &cfg.Sysfs.Root},
		{"BIOSVERIFY_LOG_LEVEL", &cfg.Logging.Level},
		{"BIOSVERIFY_LOG_FORMAT", &cfg.Logging.Format},
		{"BIOSVERIFY_LOG_FILE", &cfg.Logging.File},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.field = v
		}
	}
	if v, ok := lookup("BIOSVERIFY_STEP_PRIORITY"); ok && v != "" {
		priority, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: BIOSVERIFY_STEP_PRIORITY: %w", err)
		}
		cfg.Step.Priority = priority
	}
	return nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if _, err := biosverify.ParseSourceKind(c.Source); err != nil {
		return fmt.Errorf("config: source: %w", err)
	}
	if _, err := biosverify.ParseSudoMode(c.Probe.Sudo); err != nil {
		return fmt.Errorf("config: probe.sudo: %w", err)
	}
	if _, err := c.ProbeTimeout(); err != nil {
		return err
	}
	if c.Step.Priority <= 0 {
		return fmt.Errorf("config: step.priority must be positive, got %d", c.Step.Priority)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// ProbeTimeout 解析探测超时，空串表示默认值
func (c *Config) ProbeTimeout() (time.Duration, error) {
	if c.Probe.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Probe.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: probe.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: probe.timeout must be positive, got %s", c.Probe.Timeout)
	}
	return d, nil
}

// NewSource 按配置创建信息源
func (c *Config) NewSource(logger *slog.Logger) (biosverify.VendorInfoSource, error) {
	kind, err := biosverify.ParseSourceKind(c.Source)
	if err != nil {
		return nil, err
	}
	sudo, err := biosverify.ParseSudoMode(c.Probe.Sudo)
	if err != nil {
		return nil, err
	}
	timeout, err := c.ProbeTimeout()
	if err != nil {
		return nil, err
	}

	prober := biosverify.NewProber(logger)
	if c.Probe.Command != "" {
		prober.Command = c.Probe.Command
	}
	prober.Sudo = sudo
	if timeout > 0 {
		prober.Timeout = timeout
	}
	return biosverify.NewSource(kind, prober, c.Sysfs.Root, logger)
}

// NewManager 按配置组装硬件管理器。
// updater 为 nil 时使用空的 UpdaterRegistry（回落到 ManualUpdater），
// 厂商更新器可通过 UpdaterRegistry(manager) 取回注册表后按产品名注册。
func (c *Config) NewManager(updater biosverify.Updater, logger *slog.Logger) (*biosverify.Manager, error) {
	source, err := c.NewSource(logger)
	if err != nil {
		return nil, err
	}
	if updater == nil {
		updater = biosverify.NewUpdaterRegistry()
	}
	manager := biosverify.NewManager(biosverify.NewVerifier(source, updater, logger))
	manager.Priority = c.Step.Priority
	return manager, nil
}

// UpdaterRegistry 返回管理器使用的更新器注册表，未使用注册表时返回 nil
func UpdaterRegistry(manager *biosverify.Manager) *biosverify.UpdaterRegistry {
	if manager == nil || manager.Verifier == nil {
		return nil
	}
	registry, _ := manager.Verifier.Updater.(*biosverify.UpdaterRegistry)
	return registry
}
