package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/darkit/biosverify"
)

// LoadNode 读取节点记录（JSON 或 YAML）
func LoadNode(path string) (*biosverify.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read node %s: %w", path, err)
	}
	return ParseNode(data)
}

// ParseNode 解析节点记录
func ParseNode(data []byte) (*biosverify.Node, error) {
	node := &biosverify.Node{}
	if err := yaml.Unmarshal(data, node); err != nil {
		return nil, fmt.Errorf("config: parse node: %w", err)
	}
	return node, nil
}
