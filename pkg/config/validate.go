package config

import (
	"encoding/json"
	"fmt"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError is a single finding from the validation pipeline, tagged
// with the phase that produced it. Structural loading produces hard errors
// directly (see LoadMergedDocument/BuildScenario), and so do the domain
// checks in BuildScenario; ValidateDocument only runs the semantic (schema)
// phase.
type ValidationError struct {
	Phase    string `json:"phase"` // always "semantic"
	Path     string `json:"path"`
	Message  string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateDocument runs the semantic (JSON Schema) validation phase against
// a merged Document, before BuildScenario attempts the domain phase. It
// returns every schema violation found rather than stopping at the first.
func ValidateDocument(doc Document) []*ValidationError {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("generate schema: %v", err)}}
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("unmarshal schema: %v", err)}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("scenario-v1.json", schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("add schema resource: %v", err)}}
	}
	sch, err := c.Compile("scenario-v1.json")
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("compile schema: %v", err)}}
	}

	// Round-trip the map[string]any through JSON so nested maps match what
	// the schema library expects (it does not understand YAML-shaped values
	// like map[string]any mixed with non-string numeric types uniformly).
	data, err := json.Marshal(doc)
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("marshal document: %v", err)}}
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("unmarshal document: %v", err)}}
	}

	if err := sch.Validate(instance); err != nil {
		var out []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenSchemaErrors(ve) {
				path := "/"
				for _, seg := range cause.InstanceLocation {
					path += seg + "/"
				}
				out = append(out, &ValidationError{
					Phase:   "semantic",
					Path:    path,
					Message: fmt.Sprintf("%v", cause.ErrorKind),
				})
			}
			return out
		}
		return []*ValidationError{{Phase: "semantic", Message: err.Error()}}
	}
	return nil
}

func flattenSchemaErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenSchemaErrors(cause)...)
	}
	return flat
}

// Resolve runs the full pipeline spec.md §4.A-4.C describes: load + merge
// (component A/B), then build (component C). A caller that also wants
// non-fatal semantic diagnostics should call ValidateDocument on the merged
// document before BuildScenario.
func Resolve(path string) (*Scenario, error) {
	doc, err := LoadMergedDocument(path)
	if err != nil {
		return nil, err
	}
	return BuildScenario(doc)
}
