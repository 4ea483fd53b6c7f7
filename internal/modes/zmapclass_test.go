package modes

import "testing"

func TestZMAPClassificationStringFixesNoPortBug(t *testing.T) {
	if got := ZMAPUnreachNoPort.String(); got != "unreach_noport" {
		t.Fatalf("UnreachNoPort.String() = %q, want %q", got, "unreach_noport")
	}
	if got := ZMAPUnreachNoRoute.String(); got != "unreach_noroute" {
		t.Fatalf("UnreachNoRoute.String() = %q, want %q", got, "unreach_noroute")
	}
	if ZMAPUnreachNoPort.String() == ZMAPUnreachNoRoute.String() {
		t.Fatalf("UnreachNoPort and UnreachNoRoute must no longer collide")
	}
}

func TestZMAPClassificationStringAllValues(t *testing.T) {
	cases := []struct {
		c    ZMAPClassification
		want string
	}{
		{ZMAPEchoReply, "echoreply"},
		{ZMAPTimxceed, "timxceed"},
		{ZMAPUnreach, "unreach"},
		{ZMAPUnreachNoRoute, "unreach_noroute"},
		{ZMAPUnreachAddr, "unreach_addr"},
		{ZMAPUnreachRejectRoute, "unreach_rejectroute"},
		{ZMAPUnreachNoPort, "unreach_noport"},
		{ZMAPUnreachAdmin, "unreach_admin"},
		{ZMAPUnreachPolicy, "unreach_policy"},
		{ZMAPParamprob, "paramprob"},
	}
	for _, tc := range cases {
		if got := tc.c.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.c, got, tc.want)
		}
	}
}

func TestParseZMAPClassificationRoundTrips(t *testing.T) {
	for _, c := range []ZMAPClassification{
		ZMAPEchoReply, ZMAPTimxceed, ZMAPUnreach, ZMAPUnreachNoRoute,
		ZMAPUnreachAddr, ZMAPUnreachRejectRoute, ZMAPUnreachNoPort,
		ZMAPUnreachAdmin, ZMAPUnreachPolicy, ZMAPParamprob,
	} {
		got, ok := ParseZMAPClassification(c.String())
		if !ok {
			t.Fatalf("ParseZMAPClassification(%q) not ok", c.String())
		}
		if got != c {
			t.Errorf("ParseZMAPClassification(%q) = %d, want %d", c.String(), got, c)
		}
	}
}

func TestParseZMAPClassificationUnknown(t *testing.T) {
	if _, ok := ParseZMAPClassification("bogus"); ok {
		t.Fatalf("expected ParseZMAPClassification to reject unknown string")
	}
}

func TestParseZMAPClassificationCaseInsensitive(t *testing.T) {
	got, ok := ParseZMAPClassification("  EchoReply ")
	if !ok || got != ZMAPEchoReply {
		t.Fatalf("ParseZMAPClassification case/whitespace handling failed: got=%d ok=%v", got, ok)
	}
}
