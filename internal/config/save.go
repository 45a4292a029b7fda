package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveScanFacing updates scan.facing in the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveScanFacing(configPath, facing string) error {
	return saveScalar(configPath, []string{"scan", "facing"}, facing)
}

// SaveAutoRefresh updates auto_refresh in the config file.
func SaveAutoRefresh(configPath string, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return saveScalar(configPath, []string{"auto_refresh"}, value)
}

// SaveOperatorCompany updates operator.company in the config file.
func SaveOperatorCompany(configPath, company string) error {
	return saveScalar(configPath, []string{"operator", "company"}, company)
}

// saveScalar sets a scalar value at the given key path, creating
// intermediate mappings as needed, and writes the file atomically.
func saveScalar(configPath string, path []string, value string) error {
	// Read existing file content
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if doc.Kind == 0 {
		// Empty or new file - create document structure
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return fmt.Errorf("unexpected config document structure")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config root is not a mapping")
	}

	setScalar(root, path, value)

	// Marshal back to YAML
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// setScalar walks the key path within a mapping node, creating missing
// mappings, and sets the leaf to a scalar value.
func setScalar(mapping *yaml.Node, path []string, value string) {
	key := path[0]

	var valueNode *yaml.Node
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			valueNode = mapping.Content[i+1]
			break
		}
	}

	if len(path) == 1 {
		if valueNode != nil {
			valueNode.Kind = yaml.ScalarNode
			valueNode.Tag = ""
			valueNode.Value = value
			valueNode.Content = nil
			return
		}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value},
		)
		return
	}

	if valueNode == nil || valueNode.Kind != yaml.MappingNode {
		valueNode = &yaml.Node{Kind: yaml.MappingNode}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			valueNode,
		)
	}

	setScalar(valueNode, path[1:], value)
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".imeidesk.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
