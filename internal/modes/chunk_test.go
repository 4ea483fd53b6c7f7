package modes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
)

func TestRunChunkDistributesAllPrefixes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "prefixes.txt")
	prefixes := []string{
		"10.0.0.0/24", "10.0.1.0/24", "10.0.2.0/24", "10.0.3.0/24",
		"192.168.0.0/16",
	}
	if err := os.WriteFile(input, []byte(strings.Join(prefixes, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "chunks")

	cfg := ChunkConfig{Input: input, OutputDir: outDir, NumChunks: 2, Family: addr.V4}
	if err := RunChunk(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 chunk files, got %d", len(entries))
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line != "" {
				seen[line] = true
			}
		}
	}
	if len(seen) != len(prefixes) {
		t.Fatalf("chunk outputs covered %d distinct prefixes, want %d", len(seen), len(prefixes))
	}
	for _, p := range prefixes {
		if !seen[p] {
			t.Fatalf("chunk outputs missing prefix %q", p)
		}
	}
}

func TestRunChunkSkipsWrongFamily(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "prefixes.txt")
	if err := os.WriteFile(input, []byte("2001:db8::/32\n10.0.0.0/24\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "chunks")

	cfg := ChunkConfig{Input: input, OutputDir: outDir, NumChunks: 1, Family: addr.V4}
	if err := RunChunk(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "chunk-0.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "2001:db8") {
		t.Fatalf("chunk output should have skipped the v6 prefix: %s", data)
	}
	if !strings.Contains(string(data), "10.0.0.0/24") {
		t.Fatalf("chunk output missing the v4 prefix: %s", data)
	}
}
