package biosverify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaypipes/ghw"
)

// VendorInfo 实时探测到的机器标识。每次校验重新获取，不缓存。
type VendorInfo struct {
	ProductName string `json:"product_name"`
	BIOSVersion string `json:"bios_version"`
}

// VendorInfoSource 是获取实际厂商信息的统一接口。
//
// 约定：
//  1. 失败可降级：信息源缺失（权限不足、文件不存在、命令失败）时返回空字段，不返回错误。
//  2. 一次部署只使用一种信息源，不同来源可能给出不同格式的字符串。
type VendorInfoSource interface {
	VendorInfo(ctx context.Context) VendorInfo
}

// SourceKind 信息源类型
type SourceKind string

const (
	SourceDMIDecode SourceKind = "dmidecode"
	SourceSysfs     SourceKind = "sysfs"
	SourceGHW       SourceKind = "ghw"
)

// ParseSourceKind 解析信息源类型，空串视为 dmidecode
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceDMIDecode:
		return SourceDMIDecode, nil
	case SourceSysfs:
		return SourceSysfs, nil
	case SourceGHW:
		return SourceGHW, nil
	default:
		return "", fmt.Errorf("biosverify: unknown vendor info source %q (want dmidecode, sysfs or ghw)", s)
	}
}

// NewSource 按类型创建信息源。prober 仅用于 dmidecode，sysfsRoot 仅用于 sysfs。
func NewSource(kind SourceKind, prober *Prober, sysfsRoot string, logger *slog.Logger) (VendorInfoSource, error) {
	switch kind {
	case SourceDMIDecode, "":
		if prober == nil {
			prober = NewProber(logger)
		}
		return &DMIDecodeSource{Prober: prober}, nil
	case SourceSysfs:
		return &SysfsSource{Root: sysfsRoot, Logger: logger}, nil
	case SourceGHW:
		return &GHWSource{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("biosverify: unknown vendor info source %q", kind)
	}
}

// DMIDecodeSource 直接调用 dmidecode 读取产品名与 BIOS 版本
type DMIDecodeSource struct {
	Prober *Prober
}

// VendorInfo 先读产品名，再读 BIOS 版本
func (s *DMIDecodeSource) VendorInfo(ctx context.Context) VendorInfo {
	return VendorInfo{
		ProductName: s.Prober.Probe(ctx, AttributeProductName),
		BIOSVersion: s.Prober.Probe(ctx, AttributeBIOSVersion),
	}
}

const defaultSysfsRoot = "/sys/class/dmi/id"

// SysfsSource 从内核导出的 DMI 信息读取（/sys/class/dmi/id），不需要 root
type SysfsSource struct {
	Root   string
	Logger *slog.Logger
}

// VendorInfo 读取 product_name 与 bios_version
func (s *SysfsSource) VendorInfo(ctx context.Context) VendorInfo {
	root := s.Root
	if root == "" {
		root = defaultSysfsRoot
	}
	logger := loggerOrDefault(s.Logger)

	info := VendorInfo{}
	dmiFields := []struct {
		file  string
		field *string
	}{
		{"product_name", &info.ProductName},
		{"bios_version", &info.BIOSVersion},
	}
	for _, f := range dmiFields {
		path := filepath.Join(root, f.file)
		data, err := readFileString(path)
		if err != nil {
			logger.Warn("cannot read system property", "path", path, "error", err)
			continue
		}
		*f.field = data
	}
	return info
}

func readFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ghw 查询入口，测试中替换
var (
	ghwProduct = func() (string, error) {
		p, err := ghw.Product()
		if err != nil {
			return "", err
		}
		return p.Name, nil
	}
	ghwBIOS = func() (string, error) {
		b, err := ghw.BIOS()
		if err != nil {
			return "", err
		}
		return b.Version, nil
	}
)

// ghw 在字段不可用时返回的占位值
const ghwUnknown = "unknown"

// GHWSource 通过 ghw 的硬件能力查询获取厂商信息
type GHWSource struct {
	Logger *slog.Logger
}

// VendorInfo 查询产品与 BIOS 信息，失败的字段降级为空
func (s *GHWSource) VendorInfo(ctx context.Context) VendorInfo {
	logger := loggerOrDefault(s.Logger)
	info := VendorInfo{}

	if name, err := ghwProduct(); err != nil {
		logger.Warn("cannot read product info", "error", err)
	} else if name != ghwUnknown {
		info.ProductName = strings.TrimSpace(name)
	}

	if version, err := ghwBIOS(); err != nil {
		logger.Warn("cannot read BIOS info", "error", err)
	} else if version != ghwUnknown {
		info.BIOSVersion = strings.TrimSpace(version)
	}
	return info
}
