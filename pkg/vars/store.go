package vars

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

// Store holds required and defined variables and produces the resolved
// mapping described in spec.md §4.D. All mutation goes through SetRequired
// (or SetRequiredBatch); reads take the same lock briefly, matching the
// concurrency policy of spec.md §5.
type Store struct {
	mu sync.Mutex

	username string
	required map[string]*Declaration // name -> declaration (order-independent)
	order    []string                // insertion order, for deterministic *_view output
	defined  map[string]string       // name -> template

	dirty bool
	cache ResolvedVariables
}

// ResolvedVariables is the flat, fully interpolated name -> value mapping
// of spec.md §3. It never contains the password.
type ResolvedVariables map[string]string

// NewStore builds an empty store seeded with username.
func NewStore(username string) *Store {
	return &Store{
		username: username,
		required: make(map[string]*Declaration),
		defined:  make(map[string]string),
		dirty:    true,
	}
}

// AddRequired registers a required-variable declaration. Returns an error
// if the name collides with a defined variable (invariant 7, spec.md §3).
func (s *Store) AddRequired(d *Declaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.defined[d.Name]; exists {
		return fmt.Errorf("required variable %q collides with a defined variable of the same name", d.Name)
	}
	if _, exists := s.required[d.Name]; !exists {
		s.order = append(s.order, d.Name)
	}
	s.required[d.Name] = d
	s.dirty = true
	return nil
}

// AddDefined registers a defined-variable template. Returns an error if the
// name collides with a required variable or with "username" (invariant 7).
func (s *Store) AddDefined(name, template string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "username" {
		return fmt.Errorf("defined variable %q shadows the reserved username variable", name)
	}
	if _, exists := s.required[name]; exists {
		return fmt.Errorf("defined variable %q collides with a required variable of the same name", name)
	}
	s.defined[name] = template
	s.dirty = true
	return nil
}

// SetRequired records value for the required variable name. Calling it
// again with an identical (name, value) pair is a no-op beyond the first
// (spec.md §8 idempotence property): it returns without marking the cache
// dirty.
func (s *Store) SetRequired(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.required[name]
	if !ok {
		return fmt.Errorf("unknown required variable %q", name)
	}
	if d.ReadOnly {
		return fmt.Errorf("required variable %q is read-only", name)
	}
	if d.Value == value {
		return nil
	}
	d.Value = value
	s.dirty = true
	return nil
}

// SetRequiredBatch applies multiple updates as one logical operation.
// Every name is checked first; if any is unknown or read-only, no value
// is changed.
func (s *Store) SetRequiredBatch(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range values {
		d, ok := s.required[name]
		if !ok {
			return fmt.Errorf("unknown required variable %q", name)
		}
		if d.ReadOnly {
			return fmt.Errorf("required variable %q is read-only", name)
		}
	}
	for name, value := range values {
		if d := s.required[name]; d.Value != value {
			d.Value = value
			s.dirty = true
		}
	}
	return nil
}

// RequiredView returns the full declaration map for UI display
// (required_view() in spec.md §6), in document declaration order.
func (s *Store) RequiredView() []View {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]View, 0, len(s.order))
	for _, name := range s.order {
		d := s.required[name]
		out = append(out, View{
			Name:     d.Name,
			Label:    d.Label,
			Kind:     d.Kind,
			Value:    d.Value,
			ReadOnly: d.ReadOnly,
		})
	}
	return out
}

// now is overridable in tests so Timestamp resolution is deterministic.
var now = time.Now

// Resolve produces ResolvedVariables via the three-phase pipeline of
// spec.md §4.D: seed, expand, freeze.
func (s *Store) Resolve() (ResolvedVariables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked()
}

func (s *Store) resolveLocked() (ResolvedVariables, error) {
	working := make(map[string]string, len(s.required)+len(s.defined)+1)
	working["username"] = s.username

	// Phase 1: seed.
	for _, name := range s.order {
		d := s.required[name]
		value := d.Value
		if d.Kind == KindTimestamp && value == "" {
			value = formatTimestamp(d)
		}
		working[name] = value

		if d.Kind == KindPath && value != "" {
			if base, ok := basename(value); ok {
				working["basename:"+name] = base
			}
			// malformed/empty paths simply omit the basename:* entry;
			// a template referencing it will surface as VariableUnresolved.
		}
	}

	// Phase 2: expand defined variables by repeated substitution, bounded
	// to 1+|defined| passes (spec.md §4.D, §8).
	remaining := make(map[string]string, len(s.defined))
	for name, tmpl := range s.defined {
		remaining[name] = tmpl
	}

	maxPasses := 1 + len(s.defined)
	for pass := 0; pass < maxPasses && len(remaining) > 0; pass++ {
		changed := false
		for name, tmpl := range remaining {
			expanded, unresolved := substitutePass(tmpl, working)
			if len(unresolved) == 0 {
				working[name] = expanded
				delete(remaining, name)
				changed = true
				continue
			}
			if expanded != tmpl {
				remaining[name] = expanded
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if len(remaining) > 0 {
		// Determine whether this is a cycle (values never stopped changing
		// within the pass bound) or simply an unresolved external name.
		names := make([]string, 0, len(remaining))
		anyForeignRef := false
		for name, tmpl := range remaining {
			names = append(names, name)
			for _, ref := range referencedNames(tmpl) {
				if _, isDefined := s.defined[ref]; !isDefined {
					anyForeignRef = true
				}
			}
		}
		if anyForeignRef {
			return nil, scenexerr.Wrapf(scenexerr.KindVariableUnresolved, nil,
				"unresolved variable reference in defined variables: %s", strings.Join(names, ", "))
		}
		return nil, scenexerr.Wrapf(scenexerr.KindVariableCycle, nil,
			"cycle detected among defined variables: %s", strings.Join(names, ", "))
	}

	// Phase 3: freeze.
	frozen := make(ResolvedVariables, len(working))
	for k, v := range working {
		frozen[k] = v
	}
	s.cache = frozen
	s.dirty = false
	return frozen, nil
}

// substitutePass replaces every {name} in tmpl found in working, leaving
// unresolved placeholders untouched, and reports which keys (if any) it
// could not resolve this pass.
func substitutePass(tmpl string, working map[string]string) (string, []string) {
	var out strings.Builder
	var unresolved []string
	i := 0
	for i < len(tmpl) {
		c := tmpl[i]
		if c != '{' {
			out.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(tmpl) && isPlaceholderChar(tmpl[j]) {
			j++
		}
		if j < len(tmpl) && tmpl[j] == '}' && j > i+1 {
			key := tmpl[i+1 : j]
			if val, ok := working[key]; ok {
				out.WriteString(val)
			} else {
				out.WriteString(tmpl[i : j+1])
				unresolved = append(unresolved, key)
			}
			i = j + 1
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String(), unresolved
}

// referencedNames extracts every {name} key from tmpl.
func referencedNames(tmpl string) []string {
	var names []string
	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '{' {
			i++
			continue
		}
		j := i + 1
		for j < len(tmpl) && isPlaceholderChar(tmpl[j]) {
			j++
		}
		if j < len(tmpl) && tmpl[j] == '}' && j > i+1 {
			names = append(names, tmpl[i+1:j])
			i = j + 1
			continue
		}
		i++
	}
	return names
}

// formatTimestamp computes the current timestamp for a Timestamp
// declaration using its format and clock source (SPEC_FULL.md Open
// Question resolution: tz defaults to "local").
func formatTimestamp(d *Declaration) string {
	t := now()
	if d.TZ == "utc" {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	return t.Format(d.Format)
}

// basename derives the final non-empty path segment, matching spec.md
// §4.D's rule: "/a/b.jar" -> "b.jar"; a trailing separator skips to the
// last non-empty segment. Returns ok=false for empty/malformed input.
func basename(p string) (string, bool) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "", false
	}
	idx := strings.LastIndex(trimmed, "/")
	base := trimmed[idx+1:]
	if base == "" {
		return "", false
	}
	return base, true
}

// statRegularFile is overridable in tests.
var statRegularFile = func(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}

// ValidatePaths checks invariant 4 of spec.md §3: every Path required
// variable's current value must refer to an existing regular file.
// Called by the engine during Preparing, before Running.
func (s *Store) ValidatePaths() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		d := s.required[name]
		if d.Kind != KindPath {
			continue
		}
		if d.Value == "" {
			return scenexerr.Wrapf(scenexerr.KindPathInvalid, nil, "required path variable %q has no value", name)
		}
		if err := statRegularFile(d.Value); err != nil {
			return scenexerr.Wrapf(scenexerr.KindPathInvalid, err, "path variable %q: %s", name, d.Value)
		}
	}
	return nil
}
