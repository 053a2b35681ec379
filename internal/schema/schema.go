// Package schema provides JSON schema validation for the firmware release file.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Schema represents a JSON Schema for validation
type Schema struct {
	ID          string             `json:"$id,omitempty"`
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []interface{}      `json:"enum,omitempty"`
	Default     interface{}        `json:"default,omitempty"`
	MinItems    *int               `json:"minItems,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Defs        map[string]*Schema `json:"$defs,omitempty"`

	// AdditionalProperties is false or a *Schema for keys not in Properties
	AdditionalProperties interface{} `json:"additionalProperties,omitempty"`
}

// ValidationError represents a schema validation error
type ValidationError struct {
	Path    string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationResult contains all validation errors
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Validator validates YAML documents against a schema
type Validator struct {
	schema *Schema
	defs   map[string]*Schema
}

// NewValidator creates a new validator with the given schema
func NewValidator(schema *Schema) *Validator {
	defs := make(map[string]*Schema)
	for k, v := range schema.Defs {
		defs["#/$defs/"+k] = v
	}
	return &Validator{
		schema: schema,
		defs:   defs,
	}
}

// ValidateFile validates a YAML file
func (v *Validator) ValidateFile(fs afero.Fs, path string) *ValidationResult {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return invalid(path, fmt.Sprintf("failed to read file: %v", err))
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return invalid(path, fmt.Sprintf("invalid YAML: %v", err))
	}

	return v.Validate(doc)
}

// Validate validates a document against the schema
func (v *Validator) Validate(doc interface{}) *ValidationResult {
	result := &ValidationResult{}
	v.validate(v.schema, doc, "", result)
	result.Valid = len(result.Errors) == 0
	return result
}

func invalid(path, msg string) *ValidationResult {
	return &ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Path: path, Message: msg}},
	}
}

// validate recursively validates a value against a schema
func (v *Validator) validate(schema *Schema, value interface{}, path string, result *ValidationResult) {
	if schema == nil {
		return
	}

	if schema.Ref != "" {
		if refSchema, ok := v.defs[schema.Ref]; ok {
			v.validate(refSchema, value, path, result)
		}
		return
	}

	if schema.Type != "" && !checkType(schema.Type, value) {
		result.Errors = append(result.Errors, ValidationError{
			Path:    path,
			Message: fmt.Sprintf("expected type %s, got %s", schema.Type, typeName(value)),
			Value:   value,
		})
		return
	}

	if len(schema.Enum) > 0 {
		found := false
		for _, e := range schema.Enum {
			if value == e {
				found = true
				break
			}
		}
		if !found {
			result.Errors = append(result.Errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("value %v must be one of: %v", value, schema.Enum),
				Value:   value,
			})
		}
	}

	switch val := value.(type) {
	case map[string]interface{}:
		v.validateObject(schema, val, path, result)

	case []interface{}:
		if schema.MinItems != nil && len(val) < *schema.MinItems {
			result.Errors = append(result.Errors, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("must have at least %d items", *schema.MinItems),
			})
		}
		if schema.Items != nil {
			for i, item := range val {
				v.validate(schema.Items, item, fmt.Sprintf("%s[%d]", path, i), result)
			}
		}
	}
}

func (v *Validator) validateObject(schema *Schema, obj map[string]interface{}, path string, result *ValidationResult) {
	for _, req := range schema.Required {
		if _, exists := obj[req]; !exists {
			result.Errors = append(result.Errors, ValidationError{
				Path:    joinPath(path, req),
				Message: "required field is missing",
			})
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if propSchema, ok := schema.Properties[key]; ok {
			v.validate(propSchema, obj[key], joinPath(path, key), result)
			continue
		}

		switch ap := schema.AdditionalProperties.(type) {
		case bool:
			if !ap {
				result.Errors = append(result.Errors, ValidationError{
					Path:    joinPath(path, key),
					Message: "unknown field",
				})
			}
		case *Schema:
			v.validate(ap, obj[key], joinPath(path, key), result)
		}
	}
}

// checkType checks if a value matches the expected type
func checkType(expected string, value interface{}) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "null":
		return value == nil
	}
	return false
}

func typeName(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, float64:
		return "number"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func stringList(desc string) *Schema {
	return &Schema{
		Type:        "array",
		Description: desc,
		Items:       &Schema{Type: "string"},
	}
}

func fileGroups(props map[string]*Schema, scope string) map[string]*Schema {
	props["RoguePackages"] = stringList("Python package directories " + scope)
	props["RogueConfig"] = stringList("Directories packaged under <TopPackage>/config " + scope)
	props["CpswSource"] = stringList("CPSW source directories " + scope)
	props["CpswConfig"] = stringList("CPSW config directories " + scope)
	return props
}

// GenerateSchema returns the schema of firmware/releases.yaml
func GenerateSchema() *Schema {
	one := 1

	return &Schema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/oarkflow/fwrelease/releases.schema.json",
		Title:       "fwrelease release file",
		Description: "Release definitions of a firmware project",
		Type:        "object",
		Properties: fileGroups(map[string]*Schema{
			"Releases": {
				Type:                 "object",
				Description:          "Release definitions by name",
				AdditionalProperties: &Schema{Ref: "#/$defs/Release"},
			},
			"Targets": {
				Type:                 "object",
				Description:          "Build targets by name",
				AdditionalProperties: &Schema{Ref: "#/$defs/Target"},
			},
			"TopPackage": {
				Type:        "string",
				Description: "Python package whose __init__.py carries the release version",
			},
			"GitHubOwner": {
				Type:        "string",
				Description: "GitHub organization owning the repository",
				Default:     "slaclab",
			},
			"Checksum": {
				Type:        "string",
				Description: "Algorithm of the attachment checksum file, empty to disable",
				Enum:        []interface{}{"", "md5", "sha1", "sha256", "sha512"},
			},
			"Includes": stringList("Release files merged into this one, relative to it"),
		}, "shared by every release"),
		AdditionalProperties: false,
		Defs: map[string]*Schema{
			"Release": {
				Type:     "object",
				Required: []string{"Targets", "Types"},
				Properties: fileGroups(map[string]*Schema{
					"Targets": {
						Type:        "array",
						Description: "Targets shipped by the release",
						MinItems:    &one,
						Items:       &Schema{Type: "string"},
					},
					"Types": {
						Type:        "array",
						Description: "Bundles to generate",
						MinItems:    &one,
						Items:       &Schema{Type: "string", Enum: []interface{}{"Rogue", "CPSW"}},
					},
				}, "of this release"),
				AdditionalProperties: false,
			},
			"Target": {
				Type:     "object",
				Required: []string{"Extensions"},
				Properties: map[string]*Schema{
					"Extensions": {
						Type:        "array",
						Description: "Image file extensions of a build",
						MinItems:    &one,
						Items:       &Schema{Type: "string"},
					},
				},
				AdditionalProperties: false,
			},
		},
	}
}

// ValidateConfig validates a release file against the generated schema
func ValidateConfig(fs afero.Fs, path string) *ValidationResult {
	return NewValidator(GenerateSchema()).ValidateFile(fs, path)
}

// Error joins the validation errors into one message
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Marshal returns the indented JSON form of the schema
func Marshal(s *Schema) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
