package modes

import (
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
)

func TestBinaryKeyWidth(t *testing.T) {
	a4, err := addr.Parse("10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(binaryKey(a4)); got != 32 {
		t.Fatalf("binaryKey(IPv4) length = %d, want 32", got)
	}

	a6, err := addr.Parse("2001:db8::1")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(binaryKey(a6)); got != 128 {
		t.Fatalf("binaryKey(IPv6) length = %d, want 128", got)
	}
}

func TestBinaryKeyNetworkFromKeyRoundTrip(t *testing.T) {
	a, err := addr.Parse("192.168.1.0")
	if err != nil {
		t.Fatal(err)
	}
	key := binaryKey(a)[:24]
	net, err := networkFromKey(key, addr.V4)
	if err != nil {
		t.Fatal(err)
	}
	if net.PrefixLen != 24 {
		t.Fatalf("PrefixLen = %d, want 24", net.PrefixLen)
	}
	if !net.Addr.Equal(a) {
		t.Fatalf("networkFromKey(%q) addr = %s, want %s", key, net.Addr, a)
	}
}

func TestLongestCommonPrefix(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{"1100", "1101"}, "110"},
		{[]string{"1100", "0011"}, ""},
		{[]string{"101"}, "101"},
		{[]string{}, ""},
	}
	for _, tc := range cases {
		if got := longestCommonPrefix(tc.in); got != tc.want {
			t.Errorf("longestCommonPrefix(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIntPow(t *testing.T) {
	cases := []struct{ n, m, want int }{
		{2, 0, 1},
		{2, 3, 8},
		{2, 8, 256},
		{3, 2, 9},
	}
	for _, tc := range cases {
		if got := intPow(tc.n, tc.m); got != tc.want {
			t.Errorf("intPow(%d, %d) = %d, want %d", tc.n, tc.m, got, tc.want)
		}
	}
}
