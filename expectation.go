package biosverify

import (
	"fmt"
	"strings"
)

// 节点元数据中的键
const (
	extraKeySystemVendor = "system_vendor"

	PropertyProductName  = "product_name"
	PropertyBIOSVersion  = "bios_version"
	PropertyDisableCheck = "disable_bios_version_check"
)

// Node 编排层提供的节点记录（只读）
type Node struct {
	UUID  string                 `json:"uuid" yaml:"uuid"`
	Name  string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Extra map[string]interface{} `json:"extra" yaml:"extra"`
}

// NodeExpectation 运维在节点元数据中声明的期望硬件标识
type NodeExpectation struct {
	ProductName          string `json:"product_name"`
	BIOSVersion          string `json:"bios_version"`
	VerificationDisabled bool   `json:"verification_disabled"`
}

func metadataPath(property string) string {
	return extraKeySystemVendor + "/" + property
}

// systemVendor 返回 extra.system_vendor 映射；不存在或类型不对时返回 nil
func (n *Node) systemVendor() map[string]interface{} {
	if n == nil || n.Extra == nil {
		return nil
	}
	switch v := n.Extra[extraKeySystemVendor].(type) {
	case map[string]interface{}:
		return v
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if s, ok := key.(string); ok {
				out[s] = value
			}
		}
		return out
	default:
		return nil
	}
}

func (n *Node) lookup(property string) (interface{}, bool) {
	vendor := n.systemVendor()
	if vendor == nil {
		return nil, false
	}
	v, ok := vendor[property]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ResolveExpected 读取 extra.system_vendor.<property>。
// 缺失、为空或不是字符串时返回 ErrConfigurationMissing，消息中给出需要设置的路径。
func ResolveExpected(node *Node, property string) (string, error) {
	raw, ok := node.lookup(property)
	if !ok {
		return "", missingPropertyError(property, "not found")
	}
	value, ok := raw.(string)
	if !ok {
		// YAML 中未加引号的 2.10 会被解析成数字 2.1，不能静默转换
		return "", missingPropertyError(property, fmt.Sprintf("must be a string, got %T (quote the value)", raw))
	}
	if value == "" {
		return "", missingPropertyError(property, "is empty")
	}
	return value, nil
}

// IsVerificationDisabled 读取 extra.system_vendor.disable_bios_version_check，缺失时为 false
func IsVerificationDisabled(node *Node) (bool, error) {
	raw, ok := node.lookup(PropertyDisableCheck)
	if !ok {
		return false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := parseBool(v)
		if err != nil {
			return false, missingPropertyError(PropertyDisableCheck, err.Error())
		}
		return b, nil
	default:
		return false, missingPropertyError(PropertyDisableCheck, fmt.Sprintf("must be a boolean string, got %T", raw))
	}
}

// ResolveExpectation 依次解析禁用开关、产品名、BIOS 版本。
// 禁用时不再要求产品名与版本。
func ResolveExpectation(node *Node) (NodeExpectation, error) {
	disabled, err := IsVerificationDisabled(node)
	if err != nil {
		return NodeExpectation{}, err
	}
	if disabled {
		return NodeExpectation{VerificationDisabled: true}, nil
	}

	product, err := ResolveExpected(node, PropertyProductName)
	if err != nil {
		return NodeExpectation{}, err
	}
	bios, err := ResolveExpected(node, PropertyBIOSVersion)
	if err != nil {
		return NodeExpectation{}, err
	}
	return NodeExpectation{ProductName: product, BIOSVersion: bios}, nil
}

var (
	trueStrings  = []string{"1", "t", "true", "on", "y", "yes"}
	falseStrings = []string{"0", "f", "false", "off", "n", "no"}
)

// parseBool 只接受白名单中的写法（不区分大小写），其余一律报错
func parseBool(s string) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, t := range trueStrings {
		if v == t {
			return true, nil
		}
	}
	for _, f := range falseStrings {
		if v == f {
			return false, nil
		}
	}
	return false, fmt.Errorf("has unrecognized value %q, acceptable values are: %s",
		s, strings.Join(append(append([]string{}, trueStrings...), falseStrings...), ", "))
}
