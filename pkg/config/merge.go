package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

// LoadMergedDocument implements component B (spec.md §4.B): it loads the
// document at path, follows an optional top-level `parent` reference
// (resolved relative to path's directory), recursively merges ancestors,
// and returns a single resolved tree with `parent` stripped.
//
// Cycle detection walks the normalized absolute-path set of every document
// visited in this chain; revisiting one yields a ConfigCycle error.
func LoadMergedDocument(path string) (Document, error) {
	return loadMergedDocument(path, map[string]bool{})
}

func loadMergedDocument(path string, visited map[string]bool) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, scenexerr.Wrapf(scenexerr.KindConfigRead, err, "resolve absolute path for %s", path)
	}
	if visited[abs] {
		return nil, scenexerr.New(scenexerr.KindConfigCycle, fmt.Sprintf("parent cycle detected at %s", abs))
	}
	visited[abs] = true

	child, err := LoadDocument(abs)
	if err != nil {
		return nil, err
	}

	parentRef, hasParent := child["parent"]
	if !hasParent {
		return child, nil
	}
	parentPath, ok := parentRef.(string)
	if !ok || strings.TrimSpace(parentPath) == "" {
		return nil, scenexerr.New(scenexerr.KindConfigSchema, "top-level \"parent\" must be a non-empty string path")
	}
	if !filepath.IsAbs(parentPath) {
		parentPath = filepath.Join(filepath.Dir(abs), parentPath)
	}

	parent, err := loadMergedDocument(parentPath, visited)
	if err != nil {
		return nil, err
	}

	merged := mergeDocument(parent, child)
	delete(merged, "parent")
	return merged, nil
}

// mergeDocument implements the deep-merge rules of spec.md §4.B at the
// document root, special-casing "tasks" and "variables" so their named
// sub-entries override atomically rather than field-by-field.
func mergeDocument(parent, child Document) Document {
	merged := make(Document, len(parent)+len(child))
	for k, v := range parent {
		merged[k] = v
	}
	for k, childVal := range child {
		switch k {
		case "tasks":
			merged[k] = mergeAtomicMap(asMap(parent[k]), asMap(childVal))
		case "variables":
			merged[k] = mergeVariables(asMap(parent[k]), asMap(childVal))
		default:
			merged[k] = deepMergeValue(parent[k], childVal)
		}
	}
	return merged
}

// mergeVariables merges the variables.required and variables.defined
// sub-tables by per-name override, per spec.md §4.B.
func mergeVariables(parent, child map[string]any) map[string]any {
	merged := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		merged[k] = v
	}
	for k, childVal := range child {
		switch k {
		case "required", "defined":
			merged[k] = mergeAtomicMap(asMap(parent[k]), asMap(childVal))
		default:
			merged[k] = childVal
		}
	}
	return merged
}

// mergeAtomicMap unions two name->declaration maps; on a name collision the
// child's declaration replaces the parent's entirely (spec.md §4.B).
func mergeAtomicMap(parent, child map[string]any) map[string]any {
	merged := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range child {
		merged[k] = v
	}
	return merged
}

// deepMergeValue merges two generic YAML-decoded values. Tables (maps)
// recurse with union-of-keys/child-overrides semantics; anything else
// (scalars, arrays — including execute.steps, whose sequencing cannot be
// partially inherited) is replaced wholly by the child's value.
func deepMergeValue(parentVal, childVal any) any {
	pm, pok := parentVal.(map[string]any)
	cm, cok := childVal.(map[string]any)
	if pok && cok {
		merged := make(map[string]any, len(pm)+len(cm))
		for k, v := range pm {
			merged[k] = v
		}
		for k, v := range cm {
			merged[k] = deepMergeValue(pm[k], v)
		}
		return merged
	}
	return childVal
}

func asMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}
