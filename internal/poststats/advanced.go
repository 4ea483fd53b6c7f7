// advanced.go implements the two supplemented post-loop reports
// SPEC_FULL.md §4 pulls from original_source/.../structs/loop_info.rs:
// AdvancedLoopOutput (enriched per-loop ASN/persistence columns layered
// onto loops.csv) and the never-finished ShadowedPrecedingCounter tally
// (left commented out in the original; completed here against the ASN
// classification poststats already computes).
package poststats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/loopstore"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// AdvancedLoopOutput is SimpleLoopOutput (loopstore.LoopInfo) plus the
// ASN/persistence columns the original's AdvancedLoopOutput added.
type AdvancedLoopOutput struct {
	loopstore.LoopInfo
	NumberASN              int
	IsPersistent           bool
	AllRoutersAssigned     bool
	ASNList                []string
	PrecedingRouterSameASN bool
}

// BuildAdvancedLoopInfo reads back loops.csv (already written by
// internal/loopstore) and enriches each row with attr's ASN attribution and
// the caller's persistent-loop set.
func (a *Aggregator) BuildAdvancedLoopInfo(attr *Attribution, persistentLoops idfile.Set) ([]AdvancedLoopOutput, error) {
	infos, err := loopstore.ReadLoopInfo(filepath.Join(a.storagePath, loopstore.LoopsCSV))
	if err != nil {
		return nil, err
	}

	var out []AdvancedLoopOutput
	for _, info := range infos {
		loopASNs := attr.LoopsToASN[info.LoopID]
		_, persistent := persistentLoops[info.LoopID]

		allAssigned := true
		for router := range a.Identifiers[info.LoopID] {
			if len(attr.RoutersToASN[router]) == 0 {
				allAssigned = false
				break
			}
		}

		precedingSame := false
		if precedingASNs := attr.RoutersToASN[info.PrecedingRouter]; len(precedingASNs) > 0 {
			for asn := range precedingASNs {
				if _, ok := loopASNs[asn]; ok {
					precedingSame = true
					break
				}
			}
		}

		out = append(out, AdvancedLoopOutput{
			LoopInfo:               *info,
			NumberASN:              len(loopASNs),
			IsPersistent:           persistent,
			AllRoutersAssigned:     allAssigned,
			ASNList:                loopASNs.Sorted(),
			PrecedingRouterSameASN: precedingSame,
		})
	}
	return out, nil
}

// EmitAdvancedLoopInfo writes loops.csv, replacing internal/loopstore's
// plain SimpleLoopOutput rows with the AdvancedLoopOutput columns appended
// (an additive format change, not a break: every SimpleLoopOutput column
// stays in place and at the same position).
func (a *Aggregator) EmitAdvancedLoopInfo(attr *Attribution, persistentLoops idfile.Set) error {
	rows, err := a.BuildAdvancedLoopInfo(attr, persistentLoops)
	if err != nil {
		return err
	}

	path := filepath.Join(a.storagePath, loopstore.LoopsCSV)
	f, err := os.Create(path)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{
		"loop_id", "preceding_router", "shadowed_nets", "loop_len", "loop_start_ttl",
		"loop_stop_ttl", "preceding_router_ttl", "number_asn", "is_persistent",
		"all_routers_assigned", "asn_list", "preceding_router_same_asn",
	})
	for _, row := range rows {
		w.Write([]string{
			row.LoopID,
			row.PrecedingRouter,
			fmt.Sprintf("%d", row.ShadowedNets),
			fmt.Sprintf("%d", row.LoopLen),
			fmt.Sprintf("%d", row.LoopStartTTL),
			fmt.Sprintf("%d", row.LoopStopTTL),
			fmt.Sprintf("%d", row.PrecedingRouterTTL),
			fmt.Sprintf("%d", row.NumberASN),
			fmt.Sprintf("%t", row.IsPersistent),
			fmt.Sprintf("%t", row.AllRoutersAssigned),
			joinSemicolon(row.ASNList),
			fmt.Sprintf("%t", row.PrecedingRouterSameASN),
		})
	}
	w.Flush()
	return w.Error()
}

func joinSemicolon(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ";"
		}
		out += item
	}
	return out
}

// ShadowedPrecedingCounter tallies each loop's preceding router (from
// loops.csv) and shadowed destinations (from loops/<id>.dest) against ASN
// attribution, completing the table the original left commented out
// (original_source/.../loop_info.rs). "Domain" here is the shadowing
// loop's ASN set: table 5 buckets destinations by how they relate to it,
// table 6 buckets loops by how many distinct ASNs they themselves span.
type ShadowedPrecedingCounter struct {
	DestDomainInvolved              uint64
	OnlyOneAddressInDestDomain      uint64
	TwoOrMoreAddressesInDestDomain  uint64
	AllAddressesInDestDomain        uint64
	DestDomainNotInvolved           uint64
	PrecedingRouterInDestDomain     uint64
	PrecedingRouterNotInDestDomain  uint64
	OnlySingleDomainAsLoop          uint64
	PrecedingSameDomainAsLoop       uint64
	PrecedingNotSameDomain          uint64
	MultipleDomainsInvolved         uint64
	TwoDomains                      uint64
	ThreeOrMoreDomains              uint64
}

// BuildShadowedPrecedingCounters computes one ShadowedPrecedingCounter per
// loop-length bucket (the same member-count key LengthDistribution uses),
// summing each loop's per-destination ASN classification into its bucket.
func (a *Aggregator) BuildShadowedPrecedingCounters(attr *Attribution) (map[int]*ShadowedPrecedingCounter, error) {
	infos, err := loopstore.ReadLoopInfo(filepath.Join(a.storagePath, loopstore.LoopsCSV))
	if err != nil {
		return nil, err
	}
	precedingByLoop := make(map[string]string, len(infos))
	for _, info := range infos {
		precedingByLoop[info.LoopID] = info.PrecedingRouter
	}

	buckets := make(map[int]*ShadowedPrecedingCounter)
	for loopID, members := range a.Identifiers {
		n := len(members)
		c, ok := buckets[n]
		if !ok {
			c = &ShadowedPrecedingCounter{}
			buckets[n] = c
		}

		loopASNs := attr.LoopsToASN[loopID]
		switch len(loopASNs) {
		case 0:
		case 1:
			c.OnlySingleDomainAsLoop++
		case 2:
			c.MultipleDomainsInvolved++
			c.TwoDomains++
		default:
			c.MultipleDomainsInvolved++
			c.ThreeOrMoreDomains++
		}

		if preceding := precedingByLoop[loopID]; preceding != "" {
			precedingASNs := attr.RoutersToASN[preceding]
			sameDomain := false
			for asn := range precedingASNs {
				if _, ok := loopASNs[asn]; ok {
					sameDomain = true
					break
				}
			}
			if sameDomain {
				c.PrecedingSameDomainAsLoop++
				c.PrecedingRouterInDestDomain++
			} else {
				c.PrecedingNotSameDomain++
				c.PrecedingRouterNotInDestDomain++
			}
		}

		dests, err := a.DestinationsOf(loopID)
		if err != nil {
			return nil, err
		}
		for _, dest := range dests {
			destASNs := make(idfile.Set)
			if node := a.tree.Find(dest); node != nil {
				for _, asn := range node.ASN {
					destASNs.Add(asn)
				}
			}
			class, allIn := ClassifyShadowed(loopASNs, destASNs)
			if class != WithLoop {
				c.DestDomainNotInvolved++
				continue
			}
			c.DestDomainInvolved++
			switch {
			case allIn:
				c.AllAddressesInDestDomain++
			case len(destASNs) <= 1:
				c.OnlyOneAddressInDestDomain++
			default:
				c.TwoOrMoreAddressesInDestDomain++
			}
		}
	}
	return buckets, nil
}

// EmitPostloopStatsAdvanced writes postloop_stats.csv with the
// ShadowedPrecedingCounter columns appended to the plain unique/total
// distribution (§4.G items 2 and 7, plus the supplemented table).
func (a *Aggregator) EmitPostloopStatsAdvanced(attr *Attribution) error {
	unique, total, err := a.LengthDistribution()
	if err != nil {
		return err
	}
	counters, err := a.BuildShadowedPrecedingCounters(attr)
	if err != nil {
		return err
	}

	path := filepath.Join(a.storagePath, "postloop_stats.csv")
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w.Write([]string{
		"loop_len", "unique_loops", "total_destinations",
		"dest_domain_involved", "only_one_address_in_dest_domain",
		"two_or_more_addresses_in_dest_domain", "all_addresses_in_dest_domain",
		"dest_domain_not_involved", "preceding_router_in_dest_domain",
		"preceding_router_not_in_dest_domain", "only_single_domain_as_loop",
		"preceding_same_domain_as_loop", "preceding_not_same_domain",
		"multiple_domains_involved", "two_domains", "three_or_more_domains",
	})
	for n, u := range unique {
		c := counters[n]
		if c == nil {
			c = &ShadowedPrecedingCounter{}
		}
		w.Write([]string{
			fmt.Sprintf("%d", n), fmt.Sprintf("%d", u), fmt.Sprintf("%d", total[n]),
			fmt.Sprintf("%d", c.DestDomainInvolved), fmt.Sprintf("%d", c.OnlyOneAddressInDestDomain),
			fmt.Sprintf("%d", c.TwoOrMoreAddressesInDestDomain), fmt.Sprintf("%d", c.AllAddressesInDestDomain),
			fmt.Sprintf("%d", c.DestDomainNotInvolved), fmt.Sprintf("%d", c.PrecedingRouterInDestDomain),
			fmt.Sprintf("%d", c.PrecedingRouterNotInDestDomain), fmt.Sprintf("%d", c.OnlySingleDomainAsLoop),
			fmt.Sprintf("%d", c.PrecedingSameDomainAsLoop), fmt.Sprintf("%d", c.PrecedingNotSameDomain),
			fmt.Sprintf("%d", c.MultipleDomainsInvolved), fmt.Sprintf("%d", c.TwoDomains),
			fmt.Sprintf("%d", c.ThreeOrMoreDomains),
		})
	}
	w.Flush()
	return w.Error()
}
