package poststats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// PersistentSet selects which loop ids and routers count as "persistent"
// for the density and classification passes (§4.G takes these as a
// caller-supplied input, typically a prior run's stable subset).
type PersistentSet struct {
	Loops   idfile.Set
	Routers idfile.Set
}

func openCSV(path string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, yerr.Wrap(yerr.CannotWrite, path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, yerr.Wrap(yerr.CannotWrite, path, err)
	}
	return f, csv.NewWriter(f), nil
}

// EmitShadowedDensity writes loop_shadowed_density.csv: one row per loop,
// its destination count, shared-bit count, density and whether it is one of
// the caller's persistent loops (§4.G item 3).
func (a *Aggregator) EmitShadowedDensity(persistent idfile.Set) error {
	path := filepath.Join(a.storagePath, "loop_shadowed_density.csv")
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w.Write([]string{"loop_id", "address_count", "same_bits", "density", "persistent"})
	edge := a.family.PrefixEdge()
	for loopID := range a.Identifiers {
		dests, err := a.DestinationsOf(loopID)
		if err != nil {
			return err
		}
		sameBits := SameBits(dests, edge)
		density := Density(len(dests), sameBits, edge)
		_, isPersistent := persistent[loopID]
		w.Write([]string{
			loopID,
			fmt.Sprintf("%d", len(dests)),
			fmt.Sprintf("%d", sameBits),
			fmt.Sprintf("%f", density),
			fmt.Sprintf("%t", isPersistent),
		})
	}
	w.Flush()
	return w.Error()
}

// EmitImperiledDensity writes imperiled density per loop (union of imperiled
// sets over the loop's routers) and per router, matching §4.G items 4-5.
func (a *Aggregator) EmitImperiledDensity() error {
	edge := a.family.PrefixEdge()

	loopPath := filepath.Join(a.storagePath, "loop_imperiled_density.csv")
	loopFile, loopWriter, err := openCSV(loopPath)
	if err != nil {
		return err
	}
	defer loopFile.Close()
	loopWriter.Write([]string{"loop_id", "address_count", "same_bits", "density"})

	routerPath := filepath.Join(a.storagePath, "router_imperiled_density.csv")
	routerFile, routerWriter, err := openCSV(routerPath)
	if err != nil {
		return err
	}
	defer routerFile.Close()
	routerWriter.Write([]string{"router", "address_count", "same_bits", "density"})

	routerSeen := make(map[string]bool)
	for loopID, members := range a.Identifiers {
		union := make(map[addr.Addr]struct{})
		for router := range members {
			imp, err := a.ImperiledOf(router)
			if err != nil {
				return err
			}
			if !routerSeen[router] {
				routerSeen[router] = true
				sameBits := SameBits(imp, edge)
				density := Density(len(imp), sameBits, edge)
				routerWriter.Write([]string{
					router,
					fmt.Sprintf("%d", len(imp)),
					fmt.Sprintf("%d", sameBits),
					fmt.Sprintf("%f", density),
				})
			}
			for _, ip := range imp {
				union[ip] = struct{}{}
			}
		}

		var unioned []addr.Addr
		for ip := range union {
			unioned = append(unioned, ip)
		}
		sameBits := SameBits(unioned, edge)
		density := Density(len(unioned), sameBits, edge)
		loopWriter.Write([]string{
			loopID,
			fmt.Sprintf("%d", len(unioned)),
			fmt.Sprintf("%d", sameBits),
			fmt.Sprintf("%f", density),
		})
	}

	loopWriter.Flush()
	if err := loopWriter.Error(); err != nil {
		return err
	}
	routerWriter.Flush()
	return routerWriter.Error()
}

// EmitASN writes the five asn/*.csv artifacts §4.G item 7 names:
// router_asn.csv, loop_asn.csv, asn.csv and their two inverted index files.
func (a *Aggregator) EmitASN(attr *Attribution) error {
	dir := filepath.Join(a.storagePath, "asn")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return yerr.Wrap(yerr.CannotWrite, dir, err)
	}

	if err := writeKeyedSet(filepath.Join(dir, "router_asn.csv"), "router", "asn", attr.RoutersToASN); err != nil {
		return err
	}
	if err := writeKeyedSet(filepath.Join(dir, "loop_asn.csv"), "loop_id", "asn", attr.LoopsToASN); err != nil {
		return err
	}
	if err := writeKeyedSet(filepath.Join(dir, "asn_routers"), "asn", "router", attr.AsnToRouters); err != nil {
		return err
	}
	if err := writeKeyedSet(filepath.Join(dir, "asn_loops"), "asn", "loop_id", attr.AsnToLoops); err != nil {
		return err
	}

	path := filepath.Join(dir, "asn.csv")
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w.Write([]string{"asn", "router_count", "loop_count"})
	seen := make(map[string]struct{})
	for asn := range attr.AsnToRouters {
		seen[asn] = struct{}{}
	}
	for asn := range attr.AsnToLoops {
		seen[asn] = struct{}{}
	}
	for asn := range seen {
		w.Write([]string{
			asn,
			fmt.Sprintf("%d", len(attr.AsnToRouters[asn])),
			fmt.Sprintf("%d", len(attr.AsnToLoops[asn])),
		})
	}
	w.Flush()
	return w.Error()
}

// EmitRouters writes routers.csv: one row per router joining routers.id's
// loop membership, the shadowed-destination count summed over every loop
// the router belongs to, its imperiled count, and its ASN count, sorted by
// shadowed count descending (§4.G item 7, §6; original's write_routers_csv).
func (a *Aggregator) EmitRouters(attr *Attribution) error {
	path := filepath.Join(a.storagePath, "routers.csv")
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w.Write([]string{"router", "loops", "shadowed", "imperiled", "asn"})

	loopDestCount := make(map[string]int, len(a.Identifiers))
	for loopID := range a.Identifiers {
		dests, err := a.DestinationsOf(loopID)
		if err != nil {
			return err
		}
		loopDestCount[loopID] = len(dests)
	}

	type row struct {
		router    string
		loops     int
		shadowed  int
		imperiled int
		asn       int
	}
	rows := make([]row, 0, len(a.Routers))
	for router, loops := range a.Routers {
		shadowed := 0
		for loopID := range loops {
			shadowed += loopDestCount[loopID]
		}
		imp, err := a.ImperiledOf(router)
		if err != nil {
			return err
		}
		rows = append(rows, row{
			router:    router,
			loops:     len(loops),
			shadowed:  shadowed,
			imperiled: len(imp),
			asn:       len(attr.RoutersToASN[router]),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].shadowed > rows[j].shadowed })

	for _, r := range rows {
		w.Write([]string{
			r.router,
			fmt.Sprintf("%d", r.loops),
			fmt.Sprintf("%d", r.shadowed),
			fmt.Sprintf("%d", r.imperiled),
			fmt.Sprintf("%d", r.asn),
		})
	}
	w.Flush()
	return w.Error()
}

func writeKeyedSet(path, keyCol, valCol string, m map[string]idfile.Set) error {
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w.Write([]string{keyCol, valCol})
	for key, values := range m {
		for _, v := range values.Sorted() {
			w.Write([]string{key, v})
		}
	}
	w.Flush()
	return w.Error()
}

// EmitShadowedASN writes asn/shadowed_asn.csv: for each loop's shadowed
// destination, its classification against the loop's ASN set (§4.G item
// 6's final bullet).
func (a *Aggregator) EmitShadowedASN(attr *Attribution) error {
	path := filepath.Join(a.storagePath, "asn", "shadowed_asn.csv")
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w.Write([]string{"loop_id", "destination", "class", "all_in_loop"})

	for loopID := range a.Identifiers {
		loopASNs := attr.LoopsToASN[loopID]
		dests, err := a.DestinationsOf(loopID)
		if err != nil {
			return err
		}
		for _, dest := range dests {
			destASNs := make(idfile.Set)
			if node := a.tree.Find(dest); node != nil {
				for _, asn := range node.ASN {
					destASNs.Add(asn)
				}
			}
			class, allIn := ClassifyShadowed(loopASNs, destASNs)
			w.Write([]string{loopID, dest.String(), string(class), fmt.Sprintf("%t", allIn)})
		}
	}
	w.Flush()
	return w.Error()
}

// EmitLoopFamilies writes loop_families.csv: one row per (family id, loop
// id) pair, grouping loops that transitively share a router.
func (a *Aggregator) EmitLoopFamilies() error {
	path := filepath.Join(a.storagePath, "loop_families.csv")
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w.Write([]string{"family_id", "loop_id"})
	for i, family := range a.LoopFamilies() {
		for _, loopID := range family {
			w.Write([]string{fmt.Sprintf("%d", i), loopID})
		}
	}
	w.Flush()
	return w.Error()
}

// EmitPostloopStats writes postloop_stats.csv: one row per loop-length
// bucket with its unique and total counts (§4.G item 2, 7).
func (a *Aggregator) EmitPostloopStats() error {
	unique, total, err := a.LengthDistribution()
	if err != nil {
		return err
	}
	path := filepath.Join(a.storagePath, "postloop_stats.csv")
	f, w, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w.Write([]string{"loop_len", "unique_loops", "total_destinations"})
	for n, u := range unique {
		w.Write([]string{fmt.Sprintf("%d", n), fmt.Sprintf("%d", u), fmt.Sprintf("%d", total[n])})
	}
	w.Flush()
	return w.Error()
}

