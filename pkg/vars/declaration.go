// Package vars implements the required/defined variable store, the
// three-phase resolution pipeline, and the placeholder interpolator
// described in spec.md §§3, 4.D, 4.E.
package vars

import "fmt"

// Kind discriminates the VariableDeclaration tagged variant of spec.md §3.
type Kind string

const (
	KindString    Kind = "String"
	KindPath      Kind = "Path"
	KindTimestamp Kind = "Timestamp"
)

// Declaration is a required-variable entry: one struct covering every
// Kind's fields, with kind-specific fields (Format, TZ) left zero when
// unused rather than split across a subclass per kind.
type Declaration struct {
	Name     string
	Kind     Kind
	Label    string
	ReadOnly bool
	Value    string // current value; empty until set or seeded

	// Timestamp-only fields.
	Format string // Go reference-time layout, e.g. "2006-01-02T15:04:05"
	TZ     string // "local" or "utc"; defaults to "local"
}

// Validate checks field invariants that don't depend on a live value.
func (d *Declaration) Validate() error {
	switch d.Kind {
	case KindString, KindPath:
		return nil
	case KindTimestamp:
		if d.Format == "" {
			return fmt.Errorf("timestamp variable %q: format is required", d.Name)
		}
		if d.TZ != "" && d.TZ != "local" && d.TZ != "utc" {
			return fmt.Errorf("timestamp variable %q: tz must be \"local\" or \"utc\", got %q", d.Name, d.TZ)
		}
		return nil
	default:
		return fmt.Errorf("variable %q: unknown kind %q", d.Name, d.Kind)
	}
}

// DefaultReadOnly reports the conventional read_only default for a kind
// when the document omits the field: false for String/Path, true for
// Timestamp (spec.md §3).
func DefaultReadOnly(k Kind) bool {
	return k == KindTimestamp
}

// View is the UI-facing projection of a Declaration, returned by
// required_view() (spec.md §6). It never carries the password.
type View struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Kind     Kind   `json:"kind"`
	Value    string `json:"value"`
	ReadOnly bool   `json:"read_only"`
}
