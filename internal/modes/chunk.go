// chunk.go implements the out-of-scope `chunk` mode (SPEC_FULL.md §2):
// split a prefix list into N roughly balanced worker files by walking a
// radix trie built over the prefixes, the same Insert/Walk_post technique
// overlays_processing.go uses, then sort the collected keys by their binary
// form and round-robin them across N output files so each worker gets a
// scattered, not contiguous, slice — contiguous slices would otherwise
// cluster a single /8 onto one worker.
package modes

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	radix "github.com/Emeline-1/radix"
	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/concurrency"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// ChunkConfig holds the `chunk` command's flags.
type ChunkConfig struct {
	Input     string
	OutputDir string
	NumChunks int
	Family    addr.Family
}

// RunChunk reads cfg.Input's CIDR list, walks it via radix, and writes
// cfg.NumChunks files named chunk-0.txt..chunk-<NumChunks-1>.txt under
// cfg.OutputDir.
func RunChunk(cfg ChunkConfig, log *zerolog.Logger) error {
	lines, err := readLineSet(cfg.Input)
	if err != nil {
		return err
	}
	if cfg.NumChunks <= 0 {
		cfg.NumChunks = concurrency.DefaultWorkers
	}

	tree := radix.New()
	keyToText := make(map[string]string, len(lines))
	for _, line := range lines {
		n, err := addr.ParseNetwork(line)
		if err != nil || n.Addr.Family() != cfg.Family {
			log.Warn().Str("line", line).Msg("chunk: skipping unparseable or wrong-family prefix")
			continue
		}
		key := binaryKey(n.Addr)[:n.PrefixLen]
		tree.Insert(key, line)
		keyToText[key] = line
	}

	var order []string
	tree.Walk_post(func(parent *radix.LeafNode, children []*radix.LeafNode) {
		order = append(order, parent.Key)
		for _, c := range children {
			order = append(order, c.Key)
		}
	})
	// Walk_post only visits nodes with children; pick up leaves it never
	// reached (prefixes with no more-specific sibling in this input) by
	// falling back to every inserted key, deduplicated and sorted for a
	// deterministic chunk assignment.
	seen := make(map[string]bool, len(order))
	var all []string
	for _, k := range order {
		if !seen[k] {
			seen[k] = true
			all = append(all, k)
		}
	}
	for k := range keyToText {
		if !seen[k] {
			seen[k] = true
			all = append(all, k)
		}
	}
	sort.Strings(all)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.OutputDir, err)
	}
	writers := make([]*bufio.Writer, cfg.NumChunks)
	files := make([]*os.File, cfg.NumChunks)
	for i := 0; i < cfg.NumChunks; i++ {
		path := fmt.Sprintf("%s/chunk-%d.txt", cfg.OutputDir, i)
		f, err := os.Create(path)
		if err != nil {
			return yerr.Wrap(yerr.CannotWrite, path, err)
		}
		files[i] = f
		writers[i] = bufio.NewWriter(f)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for i, key := range all {
		w := writers[i%cfg.NumChunks]
		if _, err := w.WriteString(keyToText[key] + "\n"); err != nil {
			return yerr.Wrap(yerr.CannotWrite, cfg.OutputDir, err)
		}
	}
	for i, w := range writers {
		if err := w.Flush(); err != nil {
			return yerr.Wrap(yerr.CannotWrite, files[i].Name(), err)
		}
	}

	log.Info().Int("prefixes", len(all)).Int("chunks", cfg.NumChunks).Msg("chunk: split complete")
	return nil
}
