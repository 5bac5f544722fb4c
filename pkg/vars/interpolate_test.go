package vars

import (
	"errors"
	"testing"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

func TestInterpolateLeftToRight(t *testing.T) {
	resolved := map[string]string{"username": "alice", "basename:jar": "app.jar"}
	out, err := Interpolate("scp {basename:jar} to /home/{username}/", resolved)
	if err != nil {
		t.Fatal(err)
	}
	if out != "scp app.jar to /home/alice/" {
		t.Errorf("got %q", out)
	}
}

func TestInterpolateUnresolvedPlaceholder(t *testing.T) {
	_, err := Interpolate("{missing}", map[string]string{})
	var se *scenexerr.Error
	if !errors.As(err, &se) || se.Kind != scenexerr.KindVariableUnresolved {
		t.Fatalf("got %v, want KindVariableUnresolved", err)
	}
}

func TestInterpolateLiteralBraceWithoutEscaping(t *testing.T) {
	// SPEC_FULL.md's Open Question resolution: no brace-escaping. A
	// malformed placeholder (no closing brace, or empty key) is copied
	// through literally rather than treated as an error.
	out, err := Interpolate("{ not a placeholder", map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "{ not a placeholder" {
		t.Errorf("got %q", out)
	}
}

func TestInterpolateEmptyKeyIsLiteral(t *testing.T) {
	out, err := Interpolate("{}", map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "{}" {
		t.Errorf("got %q", out)
	}
}
