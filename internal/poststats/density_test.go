package poststats

import (
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
)

func mustAddr(t *testing.T, s string) addr.Addr {
	t.Helper()
	a, err := addr.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestSameBitsSharedOctet(t *testing.T) {
	addrs := []addr.Addr{
		mustAddr(t, "10.0.0.1"),
		mustAddr(t, "10.0.0.2"),
		mustAddr(t, "10.0.1.3"),
	}
	// the third differs in the third octet's lowest bit (0 vs 1), so the
	// shared prefix is 8+8+7 = 23 bits.
	if got := SameBits(addrs, 24); got != 23 {
		t.Fatalf("SameBits = %d, want 23", got)
	}
}

func TestSameBitsSingleElementIsFullPrefix(t *testing.T) {
	addrs := []addr.Addr{mustAddr(t, "10.0.0.1")}
	if got := SameBits(addrs, 24); got != 24 {
		t.Fatalf("SameBits = %d, want 24", got)
	}
}

func TestDensity(t *testing.T) {
	if d := Density(4, 22, 24); d != 1.0 {
		t.Fatalf("Density = %f, want 1.0", d)
	}
	if d := Density(1, 24, 24); d != 1.0 {
		t.Fatalf("Density = %f, want 1.0", d)
	}
}
