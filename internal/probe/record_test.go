package probe

import (
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
)

func TestParseValidLine(t *testing.T) {
	line := "2001:db8::1000 1 2 3 0 8 2001:db8::8 10 100 64 64 58 0 - 1"
	r, err := Parse(addr.V6, line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.SentTTL != 8 {
		t.Errorf("SentTTL = %d, want 8", r.SentTTL)
	}
	if r.Hop.String() != "2001:db8::8" {
		t.Errorf("Hop = %s, want 2001:db8::8", r.Hop)
	}
	if r.MPLS != "-" {
		t.Errorf("MPLS = %q, want -", r.MPLS)
	}
}

func TestParseRejectsWrongArity(t *testing.T) {
	line := "2001:db8::1000 1 2 3 0 8 2001:db8::8 10 100 64 64 58 0 -"
	if _, err := Parse(addr.V6, line); err == nil {
		t.Fatal("expected error for 14-token line")
	}
}

func TestParseRejectsFamilyMismatch(t *testing.T) {
	line := "10.0.0.1 1 2 3 0 8 10.0.0.8 10 100 64 64 58 0 - 1"
	if _, err := Parse(addr.V6, line); err == nil {
		t.Fatal("expected error when parsing a v4 line as v6")
	}
}

func TestParseComment(t *testing.T) {
	m, ok := ParseComment("# start: 1234567")
	if !ok {
		t.Fatal("expected comment line to parse")
	}
	if m.Key != "start" || m.Value != "1234567" {
		t.Fatalf("got %+v", m)
	}

	if _, ok := ParseComment("not a comment"); ok {
		t.Fatal("expected non-comment line to report ok=false")
	}
}
