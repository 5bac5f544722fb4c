package vars

import (
	"errors"
	"testing"
	"time"

	"github.com/ormasoftchile/scenex/pkg/scenexerr"
)

func TestResolveSeedsUsernameAndBasename(t *testing.T) {
	s := NewStore("alice")
	if err := s.AddRequired(&Declaration{Name: "jar_path", Kind: KindPath}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRequired("jar_path", "/opt/app/build/output.jar"); err != nil {
		t.Fatal(err)
	}

	resolved, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved["username"] != "alice" {
		t.Errorf("username = %q, want alice", resolved["username"])
	}
	if resolved["basename:jar_path"] != "output.jar" {
		t.Errorf("basename:jar_path = %q, want output.jar", resolved["basename:jar_path"])
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	s := NewStore("bob")
	if err := s.AddDefined("greeting", "hello {username}"); err != nil {
		t.Fatal(err)
	}

	first, err := s.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if first["greeting"] != second["greeting"] {
		t.Errorf("resolution not idempotent: %q != %q", first["greeting"], second["greeting"])
	}
	if first["greeting"] != "hello bob" {
		t.Errorf("greeting = %q, want %q", first["greeting"], "hello bob")
	}
}

func TestResolveDetectsDefinedVariableCycle(t *testing.T) {
	s := NewStore("carol")
	if err := s.AddDefined("a", "{b}"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDefined("b", "{a}"); err != nil {
		t.Fatal(err)
	}

	_, err := s.Resolve()
	if err == nil {
		t.Fatal("expected a cycle error, got nil")
	}
	var se *scenexerr.Error
	if !errors.As(err, &se) || se.Kind != scenexerr.KindVariableCycle {
		t.Fatalf("got %v, want KindVariableCycle", err)
	}
}

func TestResolveReportsUnresolvedForeignReference(t *testing.T) {
	s := NewStore("dave")
	if err := s.AddDefined("a", "{nonexistent}"); err != nil {
		t.Fatal(err)
	}

	_, err := s.Resolve()
	var se *scenexerr.Error
	if !errors.As(err, &se) || se.Kind != scenexerr.KindVariableUnresolved {
		t.Fatalf("got %v, want KindVariableUnresolved", err)
	}
}

func TestAddRequiredCollidesWithDefined(t *testing.T) {
	s := NewStore("erin")
	if err := s.AddDefined("dup", "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRequired(&Declaration{Name: "dup", Kind: KindString}); err == nil {
		t.Fatal("expected collision error, got nil")
	}
}

func TestAddDefinedCannotShadowUsername(t *testing.T) {
	s := NewStore("frank")
	if err := s.AddDefined("username", "x"); err == nil {
		t.Fatal("expected error shadowing username, got nil")
	}
}

func TestSetRequiredRejectsReadOnly(t *testing.T) {
	s := NewStore("gina")
	if err := s.AddRequired(&Declaration{Name: "ts", Kind: KindTimestamp, Format: "2006", ReadOnly: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRequired("ts", "2099"); err == nil {
		t.Fatal("expected read-only rejection, got nil")
	}
}

func TestTimestampUTCUsesClockSeam(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	old := now
	now = func() time.Time { return fixed }
	defer func() { now = old }()

	s := NewStore("holly")
	if err := s.AddRequired(&Declaration{Name: "ts", Kind: KindTimestamp, Format: "2006-01-02", TZ: "utc"}); err != nil {
		t.Fatal(err)
	}

	resolved, err := s.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if resolved["ts"] != "2026-01-02" {
		t.Errorf("ts = %q, want 2026-01-02", resolved["ts"])
	}
}

func TestValidatePathsRejectsMissingValue(t *testing.T) {
	s := NewStore("ian")
	if err := s.AddRequired(&Declaration{Name: "p", Kind: KindPath}); err != nil {
		t.Fatal(err)
	}
	err := s.ValidatePaths()
	var se *scenexerr.Error
	if !errors.As(err, &se) || se.Kind != scenexerr.KindPathInvalid {
		t.Fatalf("got %v, want KindPathInvalid", err)
	}
}

func TestValidatePathsUsesStatSeam(t *testing.T) {
	old := statRegularFile
	statRegularFile = func(path string) error { return nil }
	defer func() { statRegularFile = old }()

	s := NewStore("jill")
	if err := s.AddRequired(&Declaration{Name: "p", Kind: KindPath}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRequired("p", "/does/not/matter"); err != nil {
		t.Fatal(err)
	}
	if err := s.ValidatePaths(); err != nil {
		t.Fatalf("ValidatePaths: %v", err)
	}
}
