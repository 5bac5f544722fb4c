package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// documentSchema mirrors the expected shape of a scenario YAML document
// purely for jsonschema.Reflector purposes; it is never populated. The
// typed Scenario model (types.go) is built independently by BuildScenario,
// which tolerates the looser Document map during the merge phase.
type documentSchema struct {
	Parent      string                   `json:"parent,omitempty"`
	Credentials credentialsSchema        `json:"credentials"`
	Server      serverSchema             `json:"server"`
	Variables   variablesSchema          `json:"variables,omitempty"`
	Tasks       map[string]taskSchema    `json:"tasks,omitempty"`
	Execute     executeSchema            `json:"execute"`
}

type credentialsSchema struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

type serverSchema struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
}

type variablesSchema struct {
	Required map[string]declarationSchema `json:"required,omitempty"`
	Defined  map[string]string             `json:"defined,omitempty"`
}

type declarationSchema struct {
	Kind     string `json:"type" jsonschema:"enum=String,enum=Path,enum=Timestamp"`
	Label    string `json:"label,omitempty"`
	Value    string `json:"value,omitempty"`
	ReadOnly bool   `json:"read_only,omitempty"`
	Format   string `json:"format,omitempty"`
	TZ       string `json:"tz,omitempty" jsonschema:"enum=local,enum=utc"`
}

type taskSchema struct {
	Type            string `json:"type" jsonschema:"enum=RemoteSudo,enum=SftpCopy"`
	Description     string `json:"description,omitempty"`
	Command         string `json:"command,omitempty"`
	SourcePath      string `json:"source_path,omitempty"`
	DestinationPath string `json:"destination_path,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

type executeSchema struct {
	Steps []stepEntrySchema `json:"steps"`
}

// stepEntrySchema models execute.steps[*], which BuildScenario accepts in
// either shape: a bare task-name string, or a {task, on_fail} table. It
// implements jsonschema.JSONSchemaer directly since that union can't be
// expressed via struct-tag reflection alone.
type stepEntrySchema struct {
	Task   string   `json:"task"`
	OnFail []string `json:"on_fail,omitempty"`
}

func (stepEntrySchema) JSONSchema() *jsonschema.Schema {
	table := new(jsonschema.Reflector).Reflect(&stepTableSchema{})
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			table,
		},
	}
}

type stepTableSchema struct {
	Task   string   `json:"task"`
	OnFail []string `json:"on_fail,omitempty"`
}

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// scenario document shape, for the semantic validation phase.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&documentSchema{})
	s.ID = "https://github.com/ormasoftchile/scenex/schemas/scenario-v1.json"
	s.Title = "Scenex Scenario Document"
	s.Description = "Schema for scenex scenario YAML documents, after parent merging"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
