package biosverify

import (
	"context"
	"sync"
)

// Updater 是 BIOS 自动更新的扩展点。
// 成功更新后返回 nil；返回的任何错误都会原样作为清理失败上报。
type Updater interface {
	UpdateBIOS(ctx context.Context, actual VendorInfo, expectedVersion string) error
}

// UpdaterFunc 函数适配器
type UpdaterFunc func(ctx context.Context, actual VendorInfo, expectedVersion string) error

// UpdateBIOS 实现 Updater
func (f UpdaterFunc) UpdateBIOS(ctx context.Context, actual VendorInfo, expectedVersion string) error {
	return f(ctx, actual, expectedVersion)
}

// ManualUpdater 默认实现：不支持自动更新，总是要求人工介入
type ManualUpdater struct{}

// UpdateBIOS 总是返回 ErrUpdateUnsupported，消息包含当前与期望版本
func (ManualUpdater) UpdateBIOS(_ context.Context, actual VendorInfo, expectedVersion string) error {
	return updateUnsupportedError(actual.BIOSVersion, expectedVersion)
}

// UpdaterRegistry 按产品名分发到厂商更新器，未注册的产品回落到 ManualUpdater
type UpdaterRegistry struct {
	mu       sync.RWMutex
	updaters map[string]Updater
	fallback Updater
}

// NewUpdaterRegistry 创建空注册表
func NewUpdaterRegistry() *UpdaterRegistry {
	return &UpdaterRegistry{updaters: make(map[string]Updater)}
}

// Register 注册产品对应的更新器，产品名需与探测结果完全一致；重复注册会覆盖
func (r *UpdaterRegistry) Register(productName string, updater Updater) {
	if productName == "" || updater == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updaters == nil {
		r.updaters = make(map[string]Updater)
	}
	r.updaters[productName] = updater
}

// SetFallback 替换未匹配产品时使用的更新器
func (r *UpdaterRegistry) SetFallback(updater Updater) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = updater
}

// Lookup 返回产品对应的更新器
func (r *UpdaterRegistry) Lookup(productName string) Updater {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.updaters[productName]; ok {
		return u
	}
	if r.fallback != nil {
		return r.fallback
	}
	return ManualUpdater{}
}

// UpdateBIOS 实现 Updater
func (r *UpdaterRegistry) UpdateBIOS(ctx context.Context, actual VendorInfo, expectedVersion string) error {
	return r.Lookup(actual.ProductName).UpdateBIOS(ctx, actual, expectedVersion)
}
