package vars

import (
	"strings"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

// isPlaceholderChar reports whether r is a valid character inside a
// placeholder key: alphanumeric, underscore, or colon (for the
// "basename:" prefix). Spec.md §4.D.
func isPlaceholderChar(r byte) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == ':':
		return true
	default:
		return false
	}
}

// Interpolate expands every {name} placeholder in tmpl against resolved,
// left to right, in a single scan. An unresolved placeholder yields a
// scenexerr.KindVariableUnresolved error naming the template and the key.
//
// {{ and }} are not given escape meaning in this revision — see
// SPEC_FULL.md's Open Question resolution. A literal '{' not starting a
// well-formed placeholder is copied through verbatim.
func Interpolate(tmpl string, resolved map[string]string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		c := tmpl[i]
		if c != '{' {
			out.WriteByte(c)
			i++
			continue
		}
		// Scan for the matching '}' forming a placeholder key.
		j := i + 1
		for j < len(tmpl) && isPlaceholderChar(tmpl[j]) {
			j++
		}
		if j < len(tmpl) && tmpl[j] == '}' && j > i+1 {
			key := tmpl[i+1 : j]
			val, ok := resolved[key]
			if !ok {
				return "", scenexerr.Wrapf(scenexerr.KindVariableUnresolved, nil,
					"unresolved variable %q in template %q", key, tmpl)
			}
			out.WriteString(val)
			i = j + 1
			continue
		}
		// Not a well-formed placeholder; copy the brace literally and move on.
		out.WriteByte(c)
		i++
	}
	return out.String(), nil
}
