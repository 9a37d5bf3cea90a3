package mcp

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog lists the capability tools the MCP server advertises.
type Catalog struct {
	Server ServerInfo `yaml:"server"`
	Tools  []ToolSpec `yaml:"tools"`
}

// ServerInfo identifies the MCP server to clients.
type ServerInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ToolSpec describes one capability tool.
type ToolSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ReadOnly    bool   `yaml:"read_only"`
	// SelectorParams names arguments that must be non-empty CSS selectors.
	SelectorParams []string       `yaml:"selector_params"`
	InputSchema    map[string]any `yaml:"input_schema"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects unnamed, duplicate or reserved tools and non-object schemas.
func (c *Catalog) Validate() error {
	if c.Server.Name == "" {
		return errors.New("catalog: server name is required")
	}
	seen := make(map[string]bool, len(c.Tools))
	for i, tool := range c.Tools {
		name := strings.TrimSpace(tool.Name)
		switch {
		case name == "":
			return fmt.Errorf("catalog: tool %d has no name", i)
		case name == InvokeCommandTool:
			return fmt.Errorf("catalog: %s is reserved", name)
		case seen[name]:
			return fmt.Errorf("catalog: duplicate tool %s", name)
		}
		seen[name] = true

		if tool.InputSchema == nil {
			c.Tools[i].InputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
			continue
		}
		if t, _ := tool.InputSchema["type"].(string); t != "object" {
			return fmt.Errorf("catalog: tool %s: input schema must have type object", name)
		}
	}
	return nil
}

// Lookup returns the named tool.
func (c *Catalog) Lookup(name string) (ToolSpec, bool) {
	for _, tool := range c.Tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return ToolSpec{}, false
}

// Required returns the argument names the schema marks as required.
func (t ToolSpec) Required() []string {
	var out []string
	switch v := t.InputSchema["required"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	return out
}

// Check validates args against the required list and the selector rules.
// An empty optional selector is dropped from args.
func (t ToolSpec) Check(args map[string]any) error {
	required := make(map[string]bool)
	for _, name := range t.Required() {
		required[name] = true
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Errorf("Validation error: %s: Required", name)
		}
	}

	for _, name := range t.SelectorParams {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		s, isString := v.(string)
		if isString && s == "" && !required[name] {
			delete(args, name)
			continue
		}
		if !isString || strings.TrimSpace(s) == "" {
			return errors.New("Selector must be a non-empty string")
		}
	}
	return nil
}
