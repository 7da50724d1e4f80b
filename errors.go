package biosverify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode 清理失败的错误代码
type ErrorCode string

const (
	// ErrConfigurationMissing 节点元数据缺少期望值，或禁用开关无法解析
	ErrConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	// ErrProductMismatch 实际产品名与期望不一致
	ErrProductMismatch ErrorCode = "PRODUCT_MISMATCH"
	// ErrUpdateUnsupported 产品一致但 BIOS 版本不同，且无法自动更新
	ErrUpdateUnsupported ErrorCode = "UPDATE_UNSUPPORTED"
	// ErrUnknownStep 请求了本管理器未声明的清理步骤
	ErrUnknownStep ErrorCode = "UNKNOWN_STEP"
)

// CleaningError 清理步骤失败。
//
// 对编排层而言所有失败都是同一类"cleaning failed"，仅靠 Message 区分，
// 因此 Message 中必须包含期望值与实际值的原文。
type CleaningError struct {
	Code        ErrorCode         // 错误代码
	Step        string            // 失败的清理步骤
	Message     string            // 错误消息（原样展示给运维）
	Details     map[string]string // 错误详情
	Cause       error             // 原始错误
	Suggestions []string          // 解决建议
}

// Error 实现 error 接口
func (e *CleaningError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("cleaning failed [%s]", e.Code))
	parts = append(parts, e.Message)

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("caused by: %v", e.Cause))
	}

	result := strings.Join(parts, " ")

	if len(e.Suggestions) > 0 {
		result += fmt.Sprintf("\nSuggestions: %s", strings.Join(e.Suggestions, "; "))
	}

	return result
}

// Is 按错误代码匹配，便于 errors.Is(err, &CleaningError{Code: ErrProductMismatch})
func (e *CleaningError) Is(target error) bool {
	if err, ok := target.(*CleaningError); ok {
		return e.Code == err.Code
	}
	return false
}

// Unwrap 解包原始错误
func (e *CleaningError) Unwrap() error {
	return e.Cause
}

// WithDetail 添加错误详情
func (e *CleaningError) WithDetail(key, value string) *CleaningError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion 添加解决建议
func (e *CleaningError) WithSuggestion(suggestion string) *CleaningError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

func newCleaningError(code ErrorCode, message string, cause error) *CleaningError {
	return &CleaningError{
		Code:    code,
		Step:    StepVerifyBIOSVersion,
		Message: message,
		Cause:   cause,
		Details: make(map[string]string),
	}
}

// missingPropertyError 构造缺少期望值的配置错误，消息中给出需要设置的元数据路径
func missingPropertyError(property, reason string) *CleaningError {
	path := metadataPath(property)
	msg := fmt.Sprintf("Expected property %q %s. For cleaning to pass you must set the node extra property %s", property, reason, path)
	err := newCleaningError(ErrConfigurationMissing, msg, nil).
		WithDetail("property", property).
		WithDetail("path", path)
	if property != PropertyDisableCheck {
		err.WithSuggestion(fmt.Sprintf("set extra/%s on the node", path))
	}
	return err
}

func productMismatchError(expected, actual string) *CleaningError {
	msg := fmt.Sprintf("The product name specified in the node properties does not match the server: expected '%s', found '%s'", expected, actual)
	return newCleaningError(ErrProductMismatch, msg, nil).
		WithDetail("expected_product", expected).
		WithDetail("actual_product", actual)
}

// sourceMissingError 校验器未配置厂商信息来源
func sourceMissingError() *CleaningError {
	return newCleaningError(ErrConfigurationMissing, "No vendor info source is configured for BIOS verification", nil).
		WithSuggestion("build the verifier with NewVerifier and a dmidecode, sysfs or ghw source")
}

func updateUnsupportedError(actual, expected string) *CleaningError {
	msg := fmt.Sprintf("Automatic BIOS update is not implemented; a manual update is required: current BIOS version '%s', expected '%s'", actual, expected)
	return newCleaningError(ErrUpdateUnsupported, msg, nil).
		WithDetail("actual_bios", actual).
		WithDetail("expected_bios", expected).
		WithSuggestion(fmt.Sprintf("flash BIOS version %s manually and re-run cleaning", expected))
}

// IsCleaningError 检查是否为清理错误
func IsCleaningError(err error) bool {
	var ce *CleaningError
	return errors.As(err, &ce)
}

// CodeOf 返回错误链中第一个清理错误的代码，不存在时返回空串
func CodeOf(err error) ErrorCode {
	var ce *CleaningError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
