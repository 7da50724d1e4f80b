// Package biosverify verifies a bare-metal node's firmware identity during
// cleaning, before the node is released back into the available pool.
//
// The operator declares the expected product name and BIOS version on the node
// (extra/system_vendor/product_name and extra/system_vendor/bios_version). The
// live values are probed from the machine and compared by exact string
// equality:
//
//   - both match: the step passes
//   - only the BIOS version differs: the Updater is invoked; the default
//     refuses and asks for a manual update
//   - the product name differs: the step fails, whatever the BIOS version says,
//     because BIOS version strings are not unique across products
//
// Setting extra/system_vendor/disable_bios_version_check to a truthy value
// skips the check without probing.
package biosverify // import "github.com/darkit/biosverify"

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Outcome 校验结果
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeVerified
	OutcomeUpdateRequiredButUnsupported
	OutcomeProductMismatch
	OutcomeConfigurationMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeVerified:
		return "verified"
	case OutcomeUpdateRequiredButUnsupported:
		return "update_required_but_unsupported"
	case OutcomeProductMismatch:
		return "product_mismatch"
	case OutcomeConfigurationMissing:
		return "configuration_missing"
	default:
		return "unknown"
	}
}

// Success 是否为通过的结果
func (o Outcome) Success() bool {
	return o == OutcomeSkipped || o == OutcomeVerified
}

// Report 一次校验的完整结果
type Report struct {
	ID           string          `json:"id"`
	Node         string          `json:"node,omitempty"`
	Outcome      Outcome         `json:"-"`
	OutcomeName  string          `json:"outcome"`
	Expected     NodeExpectation `json:"expected"`
	Actual       VendorInfo      `json:"actual"`
	ProductMatch bool            `json:"product_match"`
	BIOSMatch    bool            `json:"bios_match"`
	Updated      bool            `json:"updated"` // 版本不一致但更新器已成功更新
}

func (r *Report) finish(outcome Outcome) *Report {
	r.Outcome = outcome
	r.OutcomeName = outcome.String()
	return r
}

// Verifier 校验决策引擎。无内部状态，可被多个节点并发调用。
type Verifier struct {
	Source  VendorInfoSource
	Updater Updater
	Logger  *slog.Logger
}

// NewVerifier 创建校验器；updater 为 nil 时使用 ManualUpdater
func NewVerifier(source VendorInfoSource, updater Updater, logger *slog.Logger) *Verifier {
	if updater == nil {
		updater = ManualUpdater{}
	}
	return &Verifier{Source: source, Updater: updater, Logger: logger}
}

var newVerificationID = uuid.NewString

// Verify 执行一次校验。失败时 Report 仍会返回（包含已知的期望值与实际值），
// error 为 *CleaningError 或更新器返回的原始错误。
func (v *Verifier) Verify(ctx context.Context, node *Node) (*Report, error) {
	report := &Report{ID: newVerificationID()}
	if node != nil {
		report.Node = node.UUID
	}
	logger := loggerOrDefault(v.Logger).With("verification_id", report.ID, "node", report.Node)

	disabled, err := IsVerificationDisabled(node)
	if err != nil {
		logger.Error("invalid BIOS verification flag", "error", err)
		return report.finish(OutcomeConfigurationMissing), err
	}
	if disabled {
		report.Expected.VerificationDisabled = true
		logger.Info("BIOS version check disabled for node; skipping")
		return report.finish(OutcomeSkipped), nil
	}

	// 先产品名后 BIOS 版本，保证报告的是第一个缺失项
	for _, item := range []struct {
		property string
		field    *string
	}{
		{PropertyProductName, &report.Expected.ProductName},
		{PropertyBIOSVersion, &report.Expected.BIOSVersion},
	} {
		value, err := ResolveExpected(node, item.property)
		if err != nil {
			logger.Error("expected property not found", "property", item.property, "error", err)
			return report.finish(OutcomeConfigurationMissing), err
		}
		*item.field = value
	}

	if v.Source == nil {
		err := sourceMissingError()
		logger.Error("vendor info source missing", "error", err)
		return report.finish(OutcomeConfigurationMissing), err
	}
	report.Actual = v.Source.VendorInfo(ctx)
	report.ProductMatch = report.Expected.ProductName == report.Actual.ProductName
	report.BIOSMatch = report.Expected.BIOSVersion == report.Actual.BIOSVersion

	logger = logger.With(
		"expected_product", report.Expected.ProductName,
		"actual_product", report.Actual.ProductName,
		"expected_bios", report.Expected.BIOSVersion,
		"actual_bios", report.Actual.BIOSVersion,
	)

	switch {
	case !report.ProductMatch:
		err := productMismatchError(report.Expected.ProductName, report.Actual.ProductName)
		logger.Error("product name mismatch", "error", err)
		return report.finish(OutcomeProductMismatch), err

	case report.BIOSMatch:
		logger.Debug("specified product and BIOS version match; no update is required")
		return report.finish(OutcomeVerified), nil

	default:
		logger.Info("BIOS version did not match; attempting an update")
		updater := v.Updater
		if updater == nil {
			updater = ManualUpdater{}
		}
		if err := updater.UpdateBIOS(ctx, report.Actual, report.Expected.BIOSVersion); err != nil {
			logger.Error("BIOS update failed", "error", err)
			return report.finish(OutcomeUpdateRequiredButUnsupported), err
		}
		report.Updated = true
		logger.Info("BIOS updated")
		return report.finish(OutcomeVerified), nil
	}
}

// VerifyBIOSVersion 清理步骤的布尔约定：通过返回 true，否则返回错误
func (v *Verifier) VerifyBIOSVersion(ctx context.Context, node *Node) (bool, error) {
	if _, err := v.Verify(ctx, node); err != nil {
		return false, err
	}
	return true, nil
}
