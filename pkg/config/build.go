package config

import (
	"fmt"
	"strconv"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
	"github.com/ormasoftchile/scenex/pkg/vars"
)

// BuildScenario implements component C (spec.md §4.C): it turns a merged,
// untyped Document into a typed, validated Scenario. It enforces invariants
// 1 (every step references a known task), 3 (every on_fail entry references
// a known task), 5 (server/credentials present), and 7 (no variable-name
// collisions, checked transitively through vars.Store.AddRequired/AddDefined).
func BuildScenario(doc Document) (*Scenario, error) {
	creds, err := buildCredentials(doc)
	if err != nil {
		return nil, err
	}
	server, err := buildServer(doc)
	if err != nil {
		return nil, err
	}
	store, err := buildVariables(doc, creds.Username)
	if err != nil {
		return nil, err
	}
	tasks, err := buildTasks(doc)
	if err != nil {
		return nil, err
	}
	steps, err := buildSteps(doc, tasks)
	if err != nil {
		return nil, err
	}

	return &Scenario{
		Credentials: creds,
		Server:      server,
		Variables:   store,
		Tasks:       tasks,
		Steps:       steps,
	}, nil
}

func buildCredentials(doc Document) (Credentials, error) {
	raw, ok := doc["credentials"].(map[string]any)
	if !ok {
		return Credentials{}, scenexerr.New(scenexerr.KindConfigSchema, "missing required \"credentials\" table")
	}
	username, _ := raw["username"].(string)
	if username == "" {
		return Credentials{}, scenexerr.New(scenexerr.KindConfigSchema, "credentials.username is required")
	}
	password, _ := raw["password"].(string)
	return Credentials{Username: username, Password: password}, nil
}

func buildServer(doc Document) (Server, error) {
	raw, ok := doc["server"].(map[string]any)
	if !ok {
		return Server{}, scenexerr.New(scenexerr.KindConfigSchema, "missing required \"server\" table")
	}
	host, _ := raw["host"].(string)
	if host == "" {
		return Server{}, scenexerr.New(scenexerr.KindConfigSchema, "server.host is required")
	}
	port := uint16(22)
	if rawPort, present := raw["port"]; present {
		p, err := toUint16(rawPort)
		if err != nil {
			return Server{}, scenexerr.Wrapf(scenexerr.KindConfigSchema, err, "server.port")
		}
		port = p
	}
	return Server{Host: host, Port: port}, nil
}

func toUint16(v any) (uint16, error) {
	switch n := v.(type) {
	case int:
		if n < 1 || n > 65535 {
			return 0, fmt.Errorf("port %d out of range [1,65535]", n)
		}
		return uint16(n), nil
	case int64:
		if n < 1 || n > 65535 {
			return 0, fmt.Errorf("port %d out of range [1,65535]", n)
		}
		return uint16(n), nil
	case string:
		p, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("port %q is not a number", n)
		}
		return toUint16(p)
	default:
		return 0, fmt.Errorf("port has unsupported type %T", v)
	}
}

func buildVariables(doc Document, username string) (*vars.Store, error) {
	store := vars.NewStore(username)

	varsSection, _ := doc["variables"].(map[string]any)

	requiredSection, _ := varsSection["required"].(map[string]any)
	for name, raw := range requiredSection {
		d, err := buildDeclaration(name, raw)
		if err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, scenexerr.Wrap(scenexerr.KindConfigSchema, "variables.required", err)
		}
		if err := store.AddRequired(d); err != nil {
			return nil, scenexerr.Wrap(scenexerr.KindConfigSchema, "variables.required", err)
		}
	}

	definedSection, _ := varsSection["defined"].(map[string]any)
	for name, raw := range definedSection {
		tmpl, ok := raw.(string)
		if !ok {
			return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("variables.defined.%s must be a string template", name))
		}
		if err := store.AddDefined(name, tmpl); err != nil {
			return nil, scenexerr.Wrap(scenexerr.KindConfigSchema, "variables.defined", err)
		}
	}

	return store, nil
}

func buildDeclaration(name string, raw any) (*vars.Declaration, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("variables.required.%s must be a table", name))
	}
	kindStr, _ := m["type"].(string)
	if kindStr == "" {
		return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("variables.required.%s.type is required", name))
	}
	kind := vars.Kind(kindStr)

	d := &vars.Declaration{
		Name: name,
		Kind: kind,
	}
	d.Label, _ = m["label"].(string)
	if v, present := m["value"]; present {
		d.Value, _ = v.(string)
	}
	if v, present := m["read_only"]; present {
		d.ReadOnly, _ = v.(bool)
	} else {
		d.ReadOnly = vars.DefaultReadOnly(kind)
	}
	d.Format, _ = m["format"].(string)
	if tz, present := m["tz"]; present {
		d.TZ, _ = tz.(string)
	} else {
		d.TZ = "local"
	}

	return d, nil
}

func buildTasks(doc Document) (TaskCatalog, error) {
	raw, _ := doc["tasks"].(map[string]any)
	catalog := make(TaskCatalog, len(raw))
	for name, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("tasks.%s must be a table", name))
		}
		kindStr, _ := m["type"].(string)
		desc, _ := m["description"].(string)
		errMsg, _ := m["error_message"].(string)

		switch TaskKind(kindStr) {
		case TaskRemoteSudo:
			cmd, _ := m["command"].(string)
			if cmd == "" {
				return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("tasks.%s.command is required for RemoteSudo", name))
			}
			catalog[name] = &RemoteSudoTask{
				TaskName:     name,
				Desc:         desc,
				Command:      cmd,
				ErrorMessage: errMsg,
			}
		case TaskSftpCopy:
			src, _ := m["source_path"].(string)
			dst, _ := m["destination_path"].(string)
			if src == "" || dst == "" {
				return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("tasks.%s requires source_path and destination_path for SftpCopy", name))
			}
			catalog[name] = &SftpCopyTask{
				TaskName:        name,
				Desc:            desc,
				SourcePath:      src,
				DestinationPath: dst,
				ErrorMessage:    errMsg,
			}
		default:
			return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("tasks.%s has unknown type %q", name, kindStr))
		}
	}
	return catalog, nil
}

func buildSteps(doc Document, tasks TaskCatalog) ([]Step, error) {
	execSection, _ := doc["execute"].(map[string]any)
	rawSteps, _ := execSection["steps"].([]any)

	steps := make([]Step, 0, len(rawSteps))
	for i, rawStep := range rawSteps {
		var ref string
		var onFail []string

		switch v := rawStep.(type) {
		case string:
			ref = v
		case map[string]any:
			ref, _ = v["task"].(string)
			if rawOnFail, ok := v["on_fail"].([]any); ok {
				for _, f := range rawOnFail {
					if s, ok := f.(string); ok {
						onFail = append(onFail, s)
					}
				}
			}
		default:
			return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("execute.steps[%d] has unsupported shape", i))
		}

		if ref == "" {
			return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("execute.steps[%d] is missing a task reference", i))
		}
		if _, exists := tasks[ref]; !exists {
			return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("execute.steps[%d] references unknown task %q", i, ref))
		}
		for _, f := range onFail {
			if _, exists := tasks[f]; !exists {
				return nil, scenexerr.New(scenexerr.KindConfigSchema, fmt.Sprintf("execute.steps[%d].on_fail references unknown task %q", i, f))
			}
		}

		steps = append(steps, Step{TaskRef: ref, OnFail: onFail})
	}

	if len(steps) == 0 {
		return nil, scenexerr.New(scenexerr.KindConfigSchema, "execute.steps must contain at least one step")
	}

	return steps, nil
}
