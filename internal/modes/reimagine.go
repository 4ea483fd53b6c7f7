// reimagine.go implements the out-of-scope `reimagine` mode of SPEC_FULL.md
// §4 item 5 (original_source/.../reimagine_mode.rs): fold a flat address
// list back into the smallest set of aggregate prefixes that exactly
// covers it, using the same Insert/Walk_post radix-walk technique
// overlays_processing.go's process_overlays uses to detect implicit BGP
// overlays — here the "AS path" equality check becomes "is every sibling
// of the candidate aggregate present", since there is no routing metadata
// to compare against.
package modes

import (
	"bufio"
	"os"

	radix "github.com/Emeline-1/radix"
	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// ReimagineConfig holds the `reimagine` command's flags: a flat address
// list in, a prefix-per-line file out.
type ReimagineConfig struct {
	Input  string
	Output string
	Family addr.Family
	// Floor is the shortest prefix length the fold is allowed to collapse
	// to; aggregation never continues past it. A zero value defaults to
	// Family.Width()-8, an 8-bit aggregation window in total (each round
	// folds one bit).
	Floor int
}

// RunReimagine reads cfg.Input, folds it, and writes the resulting prefix
// list to cfg.Output, one CIDR per line.
func RunReimagine(cfg ReimagineConfig, log *zerolog.Logger) error {
	addrs, err := readAddrList(cfg.Input, cfg.Family)
	if err != nil {
		return err
	}
	floor := cfg.Floor
	if floor == 0 {
		floor = cfg.Family.Width() - 8
	}

	working := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		working[binaryKey(a)] = struct{}{}
	}

	for round := cfg.Family.Width() - 1; round >= floor; round-- {
		working = foldRound(working, round)
	}

	out, err := os.Create(cfg.Output)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	count := 0
	for key := range working {
		net, err := networkFromKey(key, cfg.Family)
		if err != nil {
			log.Warn().Str("key", key).Err(err).Msg("reimagine: dropping unrenderable key")
			continue
		}
		if _, err := w.WriteString(net.String() + "\n"); err != nil {
			return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
		}
		count++
	}
	if err := w.Flush(); err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	log.Info().Int("addresses", len(addrs)).Int("prefixes", count).Msg("reimagine: folded address list")
	return nil
}

// foldRound runs one Insert/Walk_post pass over working: every distinct
// length-`round` truncation of a working key becomes a synthetic
// "candidate" node; Walk_post then reports, for each candidate, the
// working keys immediately below it, and foldRound collapses the group
// into the candidate when it exactly covers the candidate's address space
// (same implicit-aggregate check process_overlays.go makes, minus the
// AS-path comparison — there is no routing metadata to agree on here).
func foldRound(working map[string]struct{}, round int) map[string]struct{} {
	tree := radix.New()
	for key := range working {
		tree.Insert(key, "member")
	}
	candidates := make(map[string]struct{})
	for key := range working {
		if len(key) > round {
			candidates[key[:round]] = struct{}{}
		}
	}
	for cand := range candidates {
		if _, already := working[cand]; !already {
			tree.Insert(cand, "candidate")
		}
	}

	confirmed := make(map[string][]string)
	tree.Walk_post(func(parent *radix.LeafNode, children []*radix.LeafNode) {
		if parent.Val != "candidate" || len(children) < 2 {
			return
		}
		keys := make([]string, len(children))
		for i, c := range children {
			keys[i] = c.Key
		}
		common := longestCommonPrefix(keys)
		if common == "" || common != parent.Key {
			return
		}
		suffixLen := len(keys[0]) - len(common)
		if intPow(2, suffixLen) == len(children) {
			confirmed[common] = keys
		}
	})

	if len(confirmed) == 0 {
		return working
	}
	next := make(map[string]struct{}, len(working))
	collapsed := make(map[string]struct{})
	for agg, members := range confirmed {
		next[agg] = struct{}{}
		for _, m := range members {
			collapsed[m] = struct{}{}
		}
	}
	for key := range working {
		if _, done := collapsed[key]; !done {
			next[key] = struct{}{}
		}
	}
	return next
}

func readAddrList(path string, fam addr.Family) ([]addr.Addr, error) {
	f, err := os.Open(path)
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
		a, err := addr.Parse(line)
		if err != nil || a.Family() != fam {
			continue
		}
		out = append(out, a)
	}
	return out, scanner.Err()
}
