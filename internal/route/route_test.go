package route

import (
	"fmt"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/probe"
)

const (
	minTTL = 3
	maxTTL = 18

	timeExceeded uint8 = 3
	echoReply    uint8 = 129
)

func hop(n uint8) addr.Addr {
	a, err := addr.Parse(fmt.Sprintf("2001:db8::%x", n))
	if err != nil {
		panic(err)
	}
	return a
}

var destination = hop(0x1000)

// line builds the single answer recorded for one TTL, mirroring the Rust
// test helper create_v6_yarrp_line_vec: the hop defaults to hop(sentTTL)
// unless an override address is given.
func line(sentTTL uint8, typ uint8, override *addr.Addr) probe.Record {
	h := hop(sentTTL)
	if override != nil {
		h = *override
	}
	return probe.Record{
		Destination: destination,
		SentTTL:     sentTTL,
		Type:        typ,
		Hop:         h,
	}
}

func routersOf(r *Route) map[addr.Addr]struct{} { return r.LoopRouters() }

// is-not-looping: every hop answers once, reaching the destination from
// TTL 10 on, and nothing repeats.
func TestIsNotLooping(t *testing.T) {
	byTTL := map[uint8][]probe.Record{}
	for i := uint8(3); i < 19; i++ {
		typ := timeExceeded
		var dest *addr.Addr
		if i >= 10 {
			typ = echoReply
			d := destination
			dest = &d
		}
		byTTL[i] = []probe.Record{line(i, typ, dest)}
	}

	log := obslog.Global()
	r, err := Build(byTTL, minTTL, maxTTL, log)
	if err != nil {
		t.Fatal(err)
	}
	if r.IsLooping || r.HasFullLoop || r.HasSpammer || r.HasLoadBalancer {
		t.Fatalf("expected a clean route, got %+v", r)
	}
	if r.LoopStart != 0 || r.LoopEnd != 0 || r.LoopLen() != 0 {
		t.Fatalf("expected zeroed loop bounds, got start=%d end=%d len=%d", r.LoopStart, r.LoopEnd, r.LoopLen())
	}
	if len(routersOf(r)) != 0 {
		t.Fatalf("expected no loop routers, got %v", routersOf(r))
	}
	if !r.Destination.Equal(destination) || r.Credibility != 1.0 {
		t.Fatalf("got destination=%s credibility=%f", r.Destination, r.Credibility)
	}
}

// is-looping: from TTL 10, even TTLs answer as hop 8 and odd TTLs as hop 9 —
// a full 2-hop loop with no gaps.
func TestIsLooping(t *testing.T) {
	byTTL := map[uint8][]probe.Record{}
	for i := uint8(3); i < 19; i++ {
		h := hop(i)
		if i >= 10 && i%2 == 0 {
			h = hop(8)
		} else if i >= 10 && i%2 == 1 {
			h = hop(9)
		}
		byTTL[i] = []probe.Record{line(i, timeExceeded, &h)}
	}

	r, err := Build(byTTL, minTTL, maxTTL, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsLooping || !r.HasFullLoop || r.HasSpammer || r.HasLoadBalancer {
		t.Fatalf("expected a full 2-hop loop, got %+v", r)
	}
	if r.LoopStart != 8 || r.LoopEnd != 9 || r.LoopLen() != 2 {
		t.Fatalf("got start=%d end=%d len=%d, want 8/9/2", r.LoopStart, r.LoopEnd, r.LoopLen())
	}
	want := map[addr.Addr]struct{}{hop(8): {}, hop(9): {}}
	if got := routersOf(r); len(got) != len(want) {
		t.Fatalf("got loop routers %v, want %v", got, want)
	}
}

// is-looping-fragmented: an incomplete sweep where the loop window has a
// gap, so the loop is detected but not flagged full.
func TestIsLoopingFragmented(t *testing.T) {
	byTTL := map[uint8][]probe.Record{}
	for i := uint8(3); i < 9; i++ {
		byTTL[i] = []probe.Record{line(i, timeExceeded, nil)}
	}
	loopHop := hop(10)
	for _, i := range []uint8{10, 14, 16, 18} {
		byTTL[i] = []probe.Record{line(i, timeExceeded, &loopHop)}
	}

	r, err := Build(byTTL, minTTL, maxTTL, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsLooping || r.HasFullLoop {
		t.Fatalf("expected a non-full loop, got %+v", r)
	}
	if r.LoopStart != 14 || r.LoopEnd != 15 || r.LoopLen() != 2 {
		t.Fatalf("got start=%d end=%d len=%d, want 14/15/2", r.LoopStart, r.LoopEnd, r.LoopLen())
	}
	want := map[addr.Addr]struct{}{hop(10): {}}
	if got := routersOf(r); len(got) != len(want) {
		t.Fatalf("got loop routers %v, want %v", got, want)
	}
	wantCred := 10.0 / 16.0
	if r.Credibility != wantCred {
		t.Fatalf("credibility = %f, want %f", r.Credibility, wantCred)
	}
}

// is-fully-looping-later: the odd-TTL answers in the loop window are
// missing at first, so the refinement pass must find the later full window.
func TestIsFullyLoopingLater(t *testing.T) {
	byTTL := map[uint8][]probe.Record{}
	for i := uint8(3); i < 19; i++ {
		h := hop(i)
		if i >= 10 && i%2 == 0 {
			h = hop(8)
		} else if i >= 10 && i%2 == 1 {
			h = hop(9)
		}
		if i >= 9 && i <= 14 && i%2 == 1 {
			continue
		}
		byTTL[i] = []probe.Record{line(i, timeExceeded, &h)}
	}

	r, err := Build(byTTL, minTTL, maxTTL, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsLooping || !r.HasFullLoop {
		t.Fatalf("expected a full loop after refinement, got %+v", r)
	}
	if r.LoopStart != 14 || r.LoopEnd != 15 || r.LoopLen() != 2 {
		t.Fatalf("got start=%d end=%d len=%d, want 14/15/2", r.LoopStart, r.LoopEnd, r.LoopLen())
	}
	want := map[addr.Addr]struct{}{hop(8): {}, hop(9): {}}
	if got := routersOf(r); len(got) != len(want) {
		t.Fatalf("got loop routers %v, want %v", got, want)
	}
	wantCred := 13.0 / 16.0
	if r.Credibility != wantCred {
		t.Fatalf("credibility = %f, want %f", r.Credibility, wantCred)
	}
}

// has-spammer: two answers land at the same TTL.
func TestHasSpammer(t *testing.T) {
	byTTL := map[uint8][]probe.Record{}
	for i := uint8(3); i < 19; i++ {
		typ := timeExceeded
		var dest *addr.Addr
		if i >= 10 {
			typ = echoReply
			d := destination
			dest = &d
		}
		answers := []probe.Record{line(i, typ, dest)}
		if i == 9 {
			answers = append(answers, answers[0])
		}
		byTTL[i] = answers
	}

	r, err := Build(byTTL, minTTL, maxTTL, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	if r.IsLooping || r.HasFullLoop || !r.HasSpammer || r.HasLoadBalancer {
		t.Fatalf("expected only the spammer flag, got %+v", r)
	}
}

// has-load-balancer: the destination is reached, but one sub-path answers
// one TTL short of the rest, producing a spurious apparent loop that must be
// reclassified as a load balancer rather than a real loop.
func TestHasLoadBalancer(t *testing.T) {
	byTTL := map[uint8][]probe.Record{}
	for i := uint8(3); i < 19; i++ {
		sentTTL := i
		if i == 8 {
			sentTTL--
		}
		typ := timeExceeded
		var dest *addr.Addr
		if i >= 10 {
			typ = echoReply
			d := destination
			dest = &d
		}
		byTTL[i] = []probe.Record{line(sentTTL, typ, dest)}
	}

	r, err := Build(byTTL, minTTL, maxTTL, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	if r.IsLooping || r.HasFullLoop || r.HasSpammer || !r.HasLoadBalancer {
		t.Fatalf("expected only the load-balancer flag, got %+v", r)
	}
	if r.LoopStart != 0 || r.LoopEnd != 0 {
		t.Fatalf("expected loop bounds to be cleared, got start=%d end=%d", r.LoopStart, r.LoopEnd)
	}
}

// the preceding router is the hop one TTL before the loop window; when no
// answer was recorded there, PrecedingRouterNamed falls back to a
// synthesized "Unknown-<ttl>" label rather than reporting nothing.
func TestPrecedingRouterNamedFallsBackWhenUnanswered(t *testing.T) {
	loopHop := hop(200)
	byTTL := map[uint8][]probe.Record{
		// TTL 4 (loop_start - 1) never answers.
		5: {{Destination: destination, SentTTL: 5, Type: timeExceeded, Hop: loopHop}},
		6: {{Destination: destination, SentTTL: 6, Type: timeExceeded, Hop: loopHop}},
	}
	r, err := Build(byTTL, 3, 8, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsLooping || r.LoopStart != 5 {
		t.Fatalf("expected a loop starting at ttl 5, got %+v", r)
	}
	name, ttl := r.PrecedingRouterNamed()
	if ttl != 4 {
		t.Fatalf("got ttl=%d, want 4", ttl)
	}
	if name != fmt.Sprintf("Unknown-%d", ttl) {
		t.Fatalf("got name=%q", name)
	}
}
