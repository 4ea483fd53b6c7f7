// Package asntree implements the BGP prefix→ASN longest-prefix-match
// structure of SPEC_FULL.md §4.C / spec.md §4.C: a root that shards
// top-level nodes by the leading 8 (v4) or 16 (v6) bits, each node owning
// an ordered list of children strictly contained in it.
//
// SPEC_FULL.md §3 explains why this is hand-rolled rather than built on
// github.com/Emeline-1/radix or gaissmai/bart: the testable invariants in
// spec.md §8 (7 — LPM correctness, 8 — single-shard-visit) are white-box
// properties of this exact shard/contains structure, which a pre-built LPM
// engine's black-box API (Insert/Walk_post, or Table.Lookup) would not let
// this package assert over. The overall shape — a root fanning out into
// per-key buckets of nodes, each node owning its children — mirrors
// original_source/.../structs/asn_tree.rs's ASNTreeRoot/ASNTreeNode.
package asntree

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
)

// RootASN is the sentinel ASN label carried by the conceptual root; Find
// never returns it, since the root only serves as the shard dispatcher.
const RootASN = "root"

// Node is one entry of the tree: a network, the ASNs announcing it, and the
// children strictly contained within it (§3 data model).
type Node struct {
	Network  addr.Network
	ASN      []string
	Children []*Node
}

func newNode(n addr.Network, asnField string) *Node {
	return &Node{Network: n, ASN: splitASN(asnField)}
}

// splitASN parses the ASN token list: prepath segments joined by '_', each
// possibly an AS-set joined by ','.
func splitASN(field string) []string {
	var out []string
	for _, seg := range strings.Split(field, "_") {
		for _, item := range strings.Split(seg, ",") {
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// add tries to place newNet under n (or one of n's descendants). It
// reports whether n (or a descendant) took the new network.
func (n *Node) add(newNet addr.Network, asnField string) bool {
	if !n.Network.ContainsNetwork(newNet) {
		return false
	}
	for _, c := range n.Children {
		if c.add(newNet, asnField) {
			return true
		}
	}
	n.Children = append(n.Children, newNode(newNet, asnField))
	return true
}

// find walks n (and its descendants) depth-first, returning the deepest
// node containing a, or nil.
func (n *Node) find(a addr.Addr) *Node {
	if !n.Network.Contains(a) {
		return nil
	}
	for _, c := range n.Children {
		if found := c.find(a); found != nil {
			return found
		}
	}
	return n
}

// Tree is the root: a per-family set of shards, each holding an ordered
// list of top-level nodes.
type Tree struct {
	family Family
	shards map[uint32][]*Node
}

// Family is re-exported from addr for callers that only need the tree.
type Family = addr.Family

// New creates an empty tree for the given family.
func New(fam Family) *Tree {
	return &Tree{family: fam, shards: make(map[uint32][]*Node)}
}

// shardKeyForNetwork computes the shard bucket key for a network, and
// reports whether the network's prefix length meets the family's shard
// width (§4.C: prefixes shorter than the shard width are rejected).
func shardKeyForNetwork(fam Family, n addr.Network) (uint32, bool) {
	sw := fam.ShardWidth()
	if n.PrefixLen < sw {
		return 0, false
	}
	return shardKeyForAddr(fam, n.Trunc().Addr), true
}

func shardKeyForAddr(fam Family, a addr.Addr) uint32 {
	o := a.Octets()
	if fam == addr.V6 {
		return uint32(o[0])<<8 | uint32(o[1])
	}
	return uint32(o[0])
}

// AddNetwork inserts newNet (with its ASN field, as it appears on the BGP
// line) into the tree. It reports false only when the prefix is too short
// for this family's shard width; callers log and continue (§4.C failure
// modes), they do not abort the load.
func (t *Tree) AddNetwork(newNet addr.Network, asnField string) bool {
	key, ok := shardKeyForNetwork(t.family, newNet)
	if !ok {
		return false
	}
	newNet = newNet.Trunc()
	nodes := t.shards[key]
	for _, n := range nodes {
		if n.add(newNet, asnField) {
			return true
		}
	}
	t.shards[key] = append(nodes, newNode(newNet, asnField))
	return true
}

// Find returns the deepest node containing a, or nil if none does. It
// visits at most one shard (§8 invariant 8).
func (t *Tree) Find(a addr.Addr) *Node {
	key := shardKeyForAddr(t.family, a)
	for _, n := range t.shards[key] {
		if found := n.find(a); found != nil {
			return found
		}
	}
	return nil
}

// NumShards reports how many distinct shard buckets are populated, mostly
// useful for tests and diagnostics.
func (t *Tree) NumShards() int { return len(t.shards) }

// Load bulk-loads a tab-separated BGP table (addr<TAB>plen<TAB>asn) into t
// per spec.md §6. Unparseable lines are logged and skipped; a prefix that
// cannot be added is logged but does not abort the load (§4.C failure
// modes). Returns the count of accepted and rejected lines.
func (t *Tree) Load(r io.Reader, log *zerolog.Logger) (accepted, rejected int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			log.Warn().Str("line", line).Msg("asntree: malformed BGP line, skipping")
			rejected++
			continue
		}
		a, perr := addr.Parse(fields[0])
		if perr != nil || a.Family() != t.family {
			log.Warn().Str("line", line).Msg("asntree: unparseable or wrong-family address, skipping")
			rejected++
			continue
		}
		plen, perr := strconv.Atoi(fields[1])
		if perr != nil {
			log.Warn().Str("line", line).Msg("asntree: unparseable prefix length, skipping")
			rejected++
			continue
		}
		net, nerr := addr.ToNetwork(a, plen)
		if nerr != nil {
			log.Warn().Str("line", line).Msg("asntree: prefix length exceeds address width, skipping")
			rejected++
			continue
		}
		if !t.AddNetwork(net, fields[2]) {
			log.Info().Str("prefix", net.String()).Msg("asntree: prefix ignored, below shard threshold")
			rejected++
			continue
		}
		accepted++
	}
	if err := scanner.Err(); err != nil {
		return accepted, rejected, err
	}
	return accepted, rejected, nil
}
