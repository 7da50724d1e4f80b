package biosverify

import (
	"context"
	"fmt"
)

// HardwareSupport 管理器对当前硬件的支持级别，数值越大优先级越高
type HardwareSupport int

const (
	HardwareSupportNone            HardwareSupport = 0
	HardwareSupportGeneric         HardwareSupport = 1
	HardwareSupportMainline        HardwareSupport = 2
	HardwareSupportServiceProvider HardwareSupport = 3
)

func (h HardwareSupport) String() string {
	switch h {
	case HardwareSupportNone:
		return "NONE"
	case HardwareSupportGeneric:
		return "GENERIC"
	case HardwareSupportMainline:
		return "MAINLINE"
	case HardwareSupportServiceProvider:
		return "SERVICE_PROVIDER"
	default:
		return fmt.Sprintf("HardwareSupport(%d)", int(h))
	}
}

const (
	ManagerName    = "SystemBiosHardwareManager"
	ManagerVersion = "1"

	StepVerifyBIOSVersion = "verify_bios_version"
	DefaultStepPriority   = 90
)

// CleanStep 暴露给编排层的清理步骤描述
type CleanStep struct {
	Step            string `json:"step"`
	Priority        int    `json:"priority"`
	Interface       string `json:"interface"`
	RebootRequested bool   `json:"reboot_requested"`
	Abortable       bool   `json:"abortable"`
}

// Manager 把校验器适配为编排层的硬件管理器
type Manager struct {
	Verifier *Verifier
	Priority int // 0 表示默认 90
}

// NewManager 创建硬件管理器
func NewManager(verifier *Verifier) *Manager {
	return &Manager{Verifier: verifier, Priority: DefaultStepPriority}
}

func (m *Manager) Name() string    { return ManagerName }
func (m *Manager) Version() string { return ManagerVersion }

// EvaluateHardwareSupport 任何提供 dmidecode 的机器都适用
func (m *Manager) EvaluateHardwareSupport() HardwareSupport {
	return HardwareSupportServiceProvider
}

// CleanSteps 返回本管理器提供的清理步骤
func (m *Manager) CleanSteps(_ *Node) []CleanStep {
	priority := m.Priority
	if priority <= 0 {
		priority = DefaultStepPriority
	}
	return []CleanStep{{
		Step:            StepVerifyBIOSVersion,
		Priority:        priority,
		Interface:       "deploy",
		RebootRequested: false,
		Abortable:       true,
	}}
}

// ExecuteCleanStep 按名称执行清理步骤
func (m *Manager) ExecuteCleanStep(ctx context.Context, step string, node *Node) (bool, error) {
	switch step {
	case StepVerifyBIOSVersion:
		return m.Verifier.VerifyBIOSVersion(ctx, node)
	default:
		err := newCleaningError(ErrUnknownStep, fmt.Sprintf("%s does not provide clean step %q", ManagerName, step), nil)
		err.Step = step
		return false, err
	}
}
