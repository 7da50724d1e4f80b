package biosverify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// dmidecode -s 支持的关键字
const (
	AttributeProductName = "system-product-name"
	AttributeBIOSVersion = "bios-version"
)

const (
	defaultProbeCommand = "dmidecode"
	defaultProbeTimeout = 10 * time.Second
)

// SudoMode 决定探测命令是否通过 sudo 执行
type SudoMode string

const (
	SudoAuto   SudoMode = "auto"   // 非 root 时才加 sudo
	SudoAlways SudoMode = "always" // 总是加 sudo
	SudoNever  SudoMode = "never"  // 从不加 sudo
)

// ParseSudoMode 解析配置中的 sudo 模式，空串视为 auto
func ParseSudoMode(s string) (SudoMode, error) {
	switch SudoMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SudoAuto:
		return SudoAuto, nil
	case SudoAlways:
		return SudoAlways, nil
	case SudoNever:
		return SudoNever, nil
	default:
		return "", fmt.Errorf("biosverify: unknown sudo mode %q (want auto, always or never)", s)
	}
}

// commandRunner 执行外部命令，把输出写入 stdout/stderr
type commandRunner func(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error

// Prober 通过固件清单命令（dmidecode）读取单个属性。
//
// 探测本身从不返回错误：命令无法启动、非零退出或超时时记录警告并返回空串，
// 是否失败由调用方根据空值决定。每次调用启动一个进程，不做缓存。
type Prober struct {
	Command string        // 默认 dmidecode
	Sudo    SudoMode      // 默认 auto
	Timeout time.Duration // 默认 10s；<0 表示不设超时
	Logger  *slog.Logger

	runner commandRunner
	isRoot func() bool
}

// NewProber 使用默认命令与超时创建探测器
func NewProber(logger *slog.Logger) *Prober {
	return &Prober{
		Command: defaultProbeCommand,
		Sudo:    SudoAuto,
		Timeout: defaultProbeTimeout,
		Logger:  logger,
	}
}

// Probe 读取属性值，返回去掉尾部空白的 stdout
func (p *Prober) Probe(ctx context.Context, attribute string) string {
	logger := loggerOrDefault(p.Logger).With("attribute", attribute)

	if p.Timeout >= 0 {
		timeout := p.Timeout
		if timeout == 0 {
			timeout = defaultProbeTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	name, args := p.commandLine(attribute)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if err := p.run(ctx, stdout, stderr, name, args...); err != nil {
		logger.Warn("cannot read system property",
			"command", strings.Join(append([]string{name}, args...), " "),
			"error", err,
			"stderr", trim(stderr.String()))
		return ""
	}

	value := strings.TrimRight(stdout.String(), " \t\r\n")
	logger.Debug("system property", "value", value)
	return value
}

// commandLine 组装 [sudo] dmidecode -s <attribute>
func (p *Prober) commandLine(attribute string) (string, []string) {
	command := p.Command
	if command == "" {
		command = defaultProbeCommand
	}
	args := []string{"-s", attribute}

	if p.useSudo() {
		return "sudo", append([]string{"-n", command}, args...)
	}
	return command, args
}

func (p *Prober) useSudo() bool {
	switch p.Sudo {
	case SudoAlways:
		return true
	case SudoNever:
		return false
	default:
		isRoot := p.isRoot
		if isRoot == nil {
			isRoot = runningAsRoot
		}
		return !isRoot()
	}
}

func (p *Prober) run(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error {
	if p.runner != nil {
		return p.runner(ctx, stdout, stderr, cmd, args...)
	}
	return runContext(ctx, stdout, stderr, cmd, args...)
}

// runContext 执行外部命令，ctx 取消时终止进程
func runContext(ctx context.Context, stdout, stderr io.Writer, cmd string, args ...string) error {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdin = nil
	c.Stdout = stdout
	c.Stderr = stderr
	return c.Run()
}

func trim(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\n"))
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
