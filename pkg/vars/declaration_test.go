package vars

import "testing"

func TestDeclarationValidateTimestampRequiresFormat(t *testing.T) {
	d := &Declaration{Name: "ts", Kind: KindTimestamp}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for missing format, got nil")
	}
}

func TestDeclarationValidateTimestampRejectsBadTZ(t *testing.T) {
	d := &Declaration{Name: "ts", Kind: KindTimestamp, Format: "2006", TZ: "mars"}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for bad tz, got nil")
	}
}

func TestDefaultReadOnly(t *testing.T) {
	if DefaultReadOnly(KindString) {
		t.Error("String should default to read_only=false")
	}
	if DefaultReadOnly(KindPath) {
		t.Error("Path should default to read_only=false")
	}
	if !DefaultReadOnly(KindTimestamp) {
		t.Error("Timestamp should default to read_only=true")
	}
}
