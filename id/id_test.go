package id_test

import (
	"testing"

	"github.com/tidelang/tide/id"
)

func TestNew_PrefixAndFormat(t *testing.T) {
	jobID := id.NewJobID()
	if jobID.IsNil() {
		t.Fatal("NewJobID returned nil ID")
	}
	if jobID.Prefix() != id.PrefixJob {
		t.Errorf("Prefix() = %q, want %q", jobID.Prefix(), id.PrefixJob)
	}
	if jobID.String() == "" {
		t.Error("String() is empty")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	orig := id.NewFunctionID()

	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip = %q, want %q", parsed.String(), orig.String())
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("Parse(\"\") succeeded, want error")
	}
}

func TestNew_Unique(t *testing.T) {
	a := id.NewJobID()
	b := id.NewJobID()
	if a.String() == b.String() {
		t.Errorf("two generated IDs are equal: %s", a)
	}
}

func TestMarshalText_RoundTrip(t *testing.T) {
	orig := id.NewScriptID()

	text, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var back id.ID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back.String() != orig.String() {
		t.Errorf("round trip = %q, want %q", back.String(), orig.String())
	}
}

func TestNilID(t *testing.T) {
	var zero id.ID
	if !zero.IsNil() {
		t.Error("zero value IsNil() = false")
	}
	if zero.String() != "" {
		t.Errorf("zero value String() = %q, want empty", zero.String())
	}
}
