package catalog

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Parameter describes one accepted input of a tool.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Descriptor advertises a tool to calling agents. InputSchema is the JSON
// Schema object form derived from the parameter list; it is immutable after
// the catalog is built.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Catalog is the process-wide tool registry. It is read-only after New:
// List order is the declaration order and stays stable for the process
// lifetime, so it can be shared across connections without locking.
type Catalog struct {
	ordered []Descriptor
	index   map[string]int
	schemas map[string]*gojsonschema.Schema
}

// Spec declares one tool at catalog build time.
type Spec struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// New builds a catalog from declarations. Duplicate names are rejected;
// within one snapshot every name is unique.
func New(specs []Spec) (*Catalog, error) {
	c := &Catalog{
		ordered: make([]Descriptor, 0, len(specs)),
		index:   make(map[string]int, len(specs)),
		schemas: make(map[string]*gojsonschema.Schema, len(specs)),
	}

	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("catalog: tool with empty name")
		}
		if _, exists := c.index[spec.Name]; exists {
			return nil, fmt.Errorf("catalog: duplicate tool name %q", spec.Name)
		}

		schemaMap, err := buildSchema(spec)
		if err != nil {
			return nil, fmt.Errorf("catalog: schema for %s: %w", spec.Name, err)
		}

		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
		if err != nil {
			return nil, fmt.Errorf("catalog: compile schema for %s: %w", spec.Name, err)
		}

		c.index[spec.Name] = len(c.ordered)
		c.ordered = append(c.ordered, Descriptor{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schemaMap,
		})
		c.schemas[spec.Name] = compiled
	}

	return c, nil
}

// List returns the descriptors in declaration order. The slice is a copy;
// mutating it does not affect the catalog.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Describe looks a tool up by name.
func (c *Catalog) Describe(name string) (Descriptor, bool) {
	i, ok := c.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return c.ordered[i], true
}

// Len returns the number of advertised tools.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// Validate checks params against the tool's compiled schema. Unknown tools
// validate trivially; the dispatch layer owns the unknown-name path.
func (c *Catalog) Validate(name string, params map[string]interface{}) error {
	schema, ok := c.schemas[name]
	if !ok {
		return nil
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return fmt.Errorf("invalid params for %s: %v", name, issues)
	}
	return nil
}

func buildSchema(spec Spec) (map[string]interface{}, error) {
	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}

	properties := make(map[string]interface{}, len(spec.Parameters))
	required := []string{}

	for _, param := range spec.Parameters {
		if param.Name == "" {
			return nil, fmt.Errorf("parameter with empty name")
		}
		if !validTypes[param.Type] {
			return nil, fmt.Errorf("invalid type %q for parameter %s", param.Type, param.Name)
		}

		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}
	return schemaMap, nil
}
