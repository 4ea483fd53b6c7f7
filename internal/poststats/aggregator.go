// Package poststats implements the post-loop aggregator of spec.md §4.G:
// reading back the artifacts internal/loopstore persisted, computing length
// distributions and shadowed/imperiled density, attributing routers and
// loops to ASNs, and grouping loops that share a router into families via
// github.com/Emeline-1/basic_graph's connected components — the same
// "build a graph over shared keys, walk its connected components" shape
// Emeline-1-anaximander_simulator/overlays_processing.go uses to compute the
// transitive closure of overlapping BGP overlays.
package poststats

import (
	"bufio"
	"os"
	"path/filepath"

	graph "github.com/Emeline-1/basic_graph"
	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/asntree"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/loopstore"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// Aggregator owns one storage directory's persisted artifacts and the ASN
// tree used for attribution.
type Aggregator struct {
	storagePath string
	family      addr.Family
	tree        *asntree.Tree
	log         *zerolog.Logger

	Identifiers idfile.Map // loop id -> member router strings
	Routers     idfile.Map // router string -> loop ids
}

// Load reads identifiers.id and routers.id from storagePath (§4.G item 1).
func Load(storagePath string, fam addr.Family, tree *asntree.Tree, log *zerolog.Logger) (*Aggregator, error) {
	identifiers, err := idfile.Read(filepath.Join(storagePath, loopstore.IdentifiersFile))
	if err != nil {
		return nil, err
	}
	routers, err := idfile.Read(filepath.Join(storagePath, loopstore.RoutersFile))
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		storagePath: storagePath,
		family:      fam,
		tree:        tree,
		log:         log,
		Identifiers: identifiers,
		Routers:     routers,
	}, nil
}

// countLines counts the non-empty lines of a loops/<id>.dest or
// imperiled/<router>.imp file; a missing file counts as zero.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() != "" {
			n++
		}
	}
	return n, scanner.Err()
}

// DestinationsOf reads loops/<id>.dest, parsing each line as an address of
// the aggregator's family.
func (a *Aggregator) DestinationsOf(loopID string) ([]addr.Addr, error) {
	path := filepath.Join(a.storagePath, loopstore.LoopsDir, loopID+".dest")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	var out []addr.Addr
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ip, err := addr.Parse(line)
		if err != nil || ip.Family() != a.family {
			a.log.Warn().Str("line", line).Str("loop_id", loopID).Msg("poststats: skipping unparseable destination")
			continue
		}
		out = append(out, ip)
	}
	return out, scanner.Err()
}

// ImperiledOf reads imperiled/<router>.imp the same way DestinationsOf reads
// a loop's .dest file.
func (a *Aggregator) ImperiledOf(router string) ([]addr.Addr, error) {
	path := filepath.Join(a.storagePath, loopstore.ImperiledDir, router+".imp")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	var out []addr.Addr
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ip, err := addr.Parse(line)
		if err != nil || ip.Family() != a.family {
			continue
		}
		out = append(out, ip)
	}
	return out, scanner.Err()
}

// LengthDistribution computes §4.G item 2's unique and total distributions:
// unique[n] is how many distinct loop ids have exactly n member routers;
// total[n] is the number of destinations shadowed by loops of that size.
func (a *Aggregator) LengthDistribution() (unique map[int]int, total map[int]int, err error) {
	unique = make(map[int]int)
	total = make(map[int]int)
	for loopID, members := range a.Identifiers {
		n := len(members)
		unique[n]++
		count, cerr := countLines(filepath.Join(a.storagePath, loopstore.LoopsDir, loopID+".dest"))
		if cerr != nil {
			return nil, nil, cerr
		}
		total[n] += count
	}
	return unique, total, nil
}

// LoopFamilies groups loop ids that transitively share at least one router
// into connected components, using a bipartite loop<->router graph the way
// the teacher groups overlapping BGP overlays. Router-only nodes and
// singleton loops (a loop whose routers are unique to it) are dropped from
// the result; only components spanning more than one loop are returned.
func (a *Aggregator) LoopFamilies() [][]string {
	g := graph.New()
	for loopID, members := range a.Identifiers {
		for router := range members {
			g.Add_edge(loopID, router)
		}
	}

	isLoop := make(map[string]bool, len(a.Identifiers))
	for loopID := range a.Identifiers {
		isLoop[loopID] = true
	}

	var families [][]string
	g.Set_iterator()
	for g.Next_connected_component() {
		cc := g.Connected_component()
		var loops []string
		for _, node := range cc {
			if isLoop[node] {
				loops = append(loops, node)
			}
		}
		if len(loops) > 1 {
			families = append(families, loops)
		}
	}
	return families
}
