// Package route implements the per-destination route builder and loop
// detector of SPEC_FULL.md §4.D / spec.md §4.D, grounded line-for-line on
// original_source/.../structs/route.rs's Route::new: the same spammer
// detection, loop_map/loop_hops bookkeeping, "better window" refinement and
// load-balancer override, translated from Rust's HashMap-driven control flow
// into Go maps and an early-return builder function.
package route

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/probe"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// Route is the reconstructed per-destination traceroute with its loop
// verdict, built by Build from the probe records seen for one destination
// across one TTL sweep (§4.D).
type Route struct {
	Records          []probe.Record
	Destination      addr.Addr
	Credibility      float64
	LoopStart        uint8
	LoopEnd          uint8
	IsLooping        bool
	IsImperiled      bool
	ImperiledRouters []addr.Addr
	HasFullLoop      bool
	HasSpammer       bool
	HasLoadBalancer  bool
}

// Build reconstructs the route for one destination from its per-TTL answer
// sets and classifies it per §4.D's state machine: spammer detection (more
// than one answer at a TTL), loop detection via a hop→first-seeing-TTL map,
// a refinement pass that looks for a tighter or full loop window when the
// first-found loop isn't already full, and a load-balancer override when the
// destination itself was reached on a route that also looks like it loops.
//
// byTTL must hold at least one answer; Build returns yerr.NotFound if it is
// empty, mirroring the panic the original takes as a programmer error (a
// caller here is expected to have already filtered out empty groups).
func Build(byTTL map[uint8][]probe.Record, minTTL, maxTTL uint8, log *zerolog.Logger) (*Route, error) {
	var anyRecord *probe.Record
	for _, answers := range byTTL {
		if len(answers) > 0 {
			anyRecord = &answers[0]
			break
		}
	}
	if anyRecord == nil {
		return nil, yerr.New(yerr.NotFound, "route: no answers to build a route from")
	}
	destination := anyRecord.Destination

	var (
		hasSpammer         bool
		isLooping          bool
		hasFullLoop        bool
		destinationReached bool
		hasLoadBalancer    bool
		loopStart          uint8
		loopEnd            uint8
	)

	records := make([]probe.Record, 0, int(maxTTL-minTTL)+1)
	loopMap := make(map[addr.Addr]probe.Record)
	loopHops := make(map[addr.Addr][]uint8)
	var loopOrder []addr.Addr

	log.Trace().Uint8("min_ttl", minTTL).Uint8("max_ttl", maxTTL).Msg("route: scanning hops")

scan:
	for hop := minTTL; hop <= maxTTL; hop++ {
		answers, ok := byTTL[hop]
		if !ok {
			continue
		}
		if len(answers) > 1 {
			hasSpammer = true
		}
		first := answers[0]

		class := addr.ClassifyICMP(destination.Family(), first.Type)
		switch class {
		case addr.EchoReply:
			destinationReached = true
		case addr.Other:
			log.Trace().Msg("route: got other reply, ignoring rest of the sweep")
			break scan
		}

		if found, ok := loopMap[first.Hop]; ok {
			if !isLooping {
				isLooping = true
				loopEnd = first.SentTTL - 1
				loopStart = found.SentTTL
				hasFullLoop = isFullLoop(byTTL, loopStart, loopEnd)
				log.Trace().Uint8("start", loopStart).Uint8("end", loopEnd).Bool("full", hasFullLoop).Msg("route: found loop")
			}
			if existing, ok := loopHops[first.Hop]; ok {
				loopHops[first.Hop] = append(existing, first.SentTTL)
			} else {
				loopOrder = append(loopOrder, first.Hop)
				loopHops[first.Hop] = []uint8{found.SentTTL, first.SentTTL}
			}
		} else if first.Hop.Equal(destination) {
			// a route that reaches the destination cannot be looping through it
		} else {
			loopMap[first.Hop] = first
		}

		records = append(records, first)
	}

	if isLooping && !hasFullLoop {
		isLooping, hasFullLoop, loopStart, loopEnd = refineLoop(byTTL, loopOrder, loopHops, loopStart, loopEnd, hasFullLoop, log)
	}

	if destinationReached && isLooping {
		isLooping = false
		hasFullLoop = false
		hasLoadBalancer = true
		loopStart = 0
		loopEnd = 0
	}

	hopsScanned := float64(maxTTL-minTTL) + 1
	credibility := float64(len(byTTL)) / hopsScanned
	log.Trace().Float64("credibility", credibility).Msg("route: computed credibility")

	return &Route{
		Records:         records,
		Destination:     destination,
		Credibility:     credibility,
		LoopStart:       loopStart,
		LoopEnd:         loopEnd,
		IsLooping:       isLooping,
		HasFullLoop:     hasFullLoop,
		HasSpammer:      hasSpammer,
		HasLoadBalancer: hasLoadBalancer,
	}, nil
}

// refineLoop is the "better window" second pass (§4.D step 4): when the
// first loop found while scanning wasn't already full, walk each looping
// hop's recorded sent_ttl occurrences looking for either a shorter window or
// one that closes a full loop, keeping whichever is found first to close a
// full loop or is otherwise the tightest.
func refineLoop(
	byTTL map[uint8][]probe.Record,
	loopOrder []addr.Addr,
	loopHops map[addr.Addr][]uint8,
	loopStart, loopEnd uint8,
	hasFullLoop bool,
	log *zerolog.Logger,
) (isLooping, full bool, newStart, newEnd uint8) {
	minLoop := loopEnd - loopStart
	var betterStart, betterEnd uint8

	for _, hop := range loopOrder {
		indices, ok := loopHops[hop]
		if !ok {
			log.Warn().Str("hop", hop.String()).Msg("route: could not find loop indices")
			continue
		}

		var previous uint8
		for _, index := range indices {
			if previous == 0 {
				previous = index
				continue
			}
			currentLoop := index - previous - 1
			isFull := isFullLoop(byTTL, previous, index)
			log.Trace().Uint8("len", currentLoop+1).Bool("full", isFull).Msg("route: checking candidate loop")

			if currentLoop < minLoop || isFull {
				minLoop = currentLoop
				betterStart = previous
				betterEnd = index - 1
				if isFull {
					hasFullLoop = true
					break
				}
			}
			previous = index
		}
		if hasFullLoop {
			break
		}
	}

	if betterEnd != 0 && betterStart != 0 {
		loopStart = betterStart
		loopEnd = betterEnd
	}
	return true, hasFullLoop, loopStart, loopEnd
}

// isFullLoop reports whether every TTL in [start, end] produced an answer,
// i.e. the loop window has no gaps (§4.D step 3).
func isFullLoop(byTTL map[uint8][]probe.Record, start, end uint8) bool {
	for ttl := start; ttl <= end; ttl++ {
		if _, ok := byTTL[ttl]; !ok {
			return false
		}
	}
	return true
}

// LoopLen reports the loop's length in hops, or 0 if the route isn't
// looping. A loop has length at least 1.
func (r *Route) LoopLen() uint8 {
	if !r.IsLooping {
		return 0
	}
	return r.LoopEnd - r.LoopStart + 1
}

// LoopRouters returns the set of addresses that took part in the loop,
// i.e. every hop answer whose sent TTL falls within [LoopStart, LoopEnd].
func (r *Route) LoopRouters() map[addr.Addr]struct{} {
	out := make(map[addr.Addr]struct{})
	if !r.IsLooping {
		return out
	}
	for _, rec := range r.Records {
		if r.LoopStart <= rec.SentTTL && rec.SentTTL <= r.LoopEnd {
			out[rec.Hop] = struct{}{}
		}
	}
	return out
}

// PrecedingRouter returns the hop one TTL before the loop starts, and
// whether one was seen.
func (r *Route) PrecedingRouter() (addr.Addr, uint8, bool) {
	for _, rec := range r.Records {
		if rec.SentTTL == r.LoopStart-1 {
			return rec.Hop, rec.SentTTL, true
		}
	}
	return addr.Addr{}, 0, false
}

// PrecedingRouterNamed is PrecedingRouter with a synthesized "Unknown-<ttl>"
// label when no answer was recorded at loop_start-1, matching the original's
// fallback for destinations whose preceding hop never replied.
func (r *Route) PrecedingRouterNamed() (string, uint8) {
	if hop, ttl, ok := r.PrecedingRouter(); ok {
		return hop.String(), ttl
	}
	ttl := r.LoopStart - 1
	return fmt.Sprintf("Unknown-%d", ttl), ttl
}
