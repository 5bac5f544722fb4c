package config

import (
	"os"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
	"gopkg.in/yaml.v3"
)

// Document is the untyped tree produced by component A, preserving tables,
// arrays, and scalars exactly as spec.md §4.A describes. It is a plain
// map[string]any so the merger (component B) can deep-merge it without
// any knowledge of the typed schema.
type Document map[string]any

// LoadDocument reads a file's bytes and parses it as YAML into an untyped
// tree (spec.md §4.A). Failures are tagged ConfigRead (I/O) or
// ConfigParse (syntax), splitting read from parse the way a LoadFile/Load
// pair would, but returning a generic map rather than a typed struct,
// since merging across `parent` must happen before typing.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scenexerr.Wrapf(scenexerr.KindConfigRead, err, "read scenario document %s", path)
	}
	return ParseDocument(data, path)
}

// ParseDocument parses raw YAML bytes into an untyped tree.
func ParseDocument(data []byte, sourcePath string) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, scenexerr.Wrapf(scenexerr.KindConfigParse, err, "parse scenario document %s", sourcePath)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
