package modes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
)

func TestRunTargetGeneratesPerPrefixCount(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "prefixes.txt")
	if err := os.WriteFile(input, []byte("10.0.0.0/24\n10.0.1.0/24\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "targets.txt")

	cfg := TargetConfig{Input: input, Output: output, PerPrefix: 3, Family: addr.V4}
	if err := RunTarget(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d targets, want 6 (2 prefixes * 3 per prefix)", len(lines))
	}
	for _, line := range lines {
		a, err := addr.Parse(line)
		if err != nil {
			t.Fatalf("generated target %q does not parse: %v", line, err)
		}
		if !strings.HasPrefix(a.String(), "10.0.0.") && !strings.HasPrefix(a.String(), "10.0.1.") {
			t.Fatalf("generated target %q falls outside either input prefix", line)
		}
	}
}
