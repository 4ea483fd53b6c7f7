// asn.go implements the ASN attribution and shadowed-destination
// classification of spec.md §4.G items 6–7, built on top of the ASN tree
// (internal/asntree) and the router/identifier inverted indexes persisted by
// internal/loopstore (internal/idfile's Map codec).
package poststats

import (
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/asntree"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
)

// Attribution is the full set of router/loop <-> ASN mappings §4.G item 6
// asks for.
type Attribution struct {
	RoutersToASN map[string]idfile.Set // router address string -> ASN set
	AsnToRouters map[string]idfile.Set // ASN -> router address strings
	LoopsToASN   map[string]idfile.Set // loop id -> ASN set
	AsnToLoops   map[string]idfile.Set // ASN -> loop ids
}

// BuildAttribution attributes every router named in routers (routers.id,
// keyed by router address string) to its ASN via tree, then derives the
// loop-level union over identifiers (identifiers.id, keyed by loop id,
// valued by its member router strings) and both inversions.
func BuildAttribution(tree *asntree.Tree, identifiers idfile.Map, routers idfile.Map) (*Attribution, error) {
	a := &Attribution{
		RoutersToASN: make(map[string]idfile.Set),
		AsnToRouters: make(map[string]idfile.Set),
		LoopsToASN:   make(map[string]idfile.Set),
		AsnToLoops:   make(map[string]idfile.Set),
	}

	for routerStr := range routers {
		asns := make(idfile.Set)
		if ip, err := addr.Parse(routerStr); err == nil {
			if node := tree.Find(ip); node != nil {
				for _, asn := range node.ASN {
					asns.Add(asn)
				}
			}
		}
		a.RoutersToASN[routerStr] = asns
		for asn := range asns {
			set, ok := a.AsnToRouters[asn]
			if !ok {
				set = make(idfile.Set)
				a.AsnToRouters[asn] = set
			}
			set.Add(routerStr)
		}
	}

	for loopID, members := range identifiers {
		asns := make(idfile.Set)
		for router := range members {
			for asn := range a.RoutersToASN[router] {
				asns.Add(asn)
			}
		}
		a.LoopsToASN[loopID] = asns
		for asn := range asns {
			set, ok := a.AsnToLoops[asn]
			if !ok {
				set = make(idfile.Set)
				a.AsnToLoops[asn] = set
			}
			set.Add(loopID)
		}
	}

	return a, nil
}

// ShadowClass is the classification of one shadowed destination relative to
// the ASNs of the loop that shadows it (§4.G item 6's final bullet).
type ShadowClass string

const (
	Unknown     ShadowClass = "unknown"
	NotWithLoop ShadowClass = "not_with_loop"
	WithLoop    ShadowClass = "with_loop"
)

// ClassifyShadowed implements §4.G's classification table: a destination's
// ASN set is compared against its shadowing loop's ASN set. allInLoop is
// only meaningful when the verdict is WithLoop.
func ClassifyShadowed(loopASNs, destASNs idfile.Set) (class ShadowClass, allInLoop bool) {
	if len(loopASNs) == 0 {
		if len(destASNs) == 0 {
			return Unknown, false
		}
		return NotWithLoop, false
	}
	if len(destASNs) == 0 {
		return Unknown, false
	}

	anyIn := false
	allIn := true
	for d := range destASNs {
		if _, ok := loopASNs[d]; ok {
			anyIn = true
		} else {
			allIn = false
		}
	}
	if anyIn {
		return WithLoop, allIn
	}
	return NotWithLoop, false
}
