package modes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
)

func TestRunImperiledFlagsCrossingRoute(t *testing.T) {
	dir := t.TempDir()
	outputDir := t.TempDir()

	persistentPath := filepath.Join(dir, "routers.id")
	if err := os.WriteFile(persistentPath, []byte("2001:db8::dead=\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	inputPath := filepath.Join(dir, "probes.txt")
	// a non-looping route through the persistent router: no hop answers at
	// more than one ttl, so route.Build will not flag it as a loop.
	lines := []string{
		probeLine("2001:db8::1", "2001:db8::dead", 3),
		probeLine("2001:db8::1", "2001:db8::1", 4),
	}
	if err := os.WriteFile(inputPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := ImperiledConfig{
		Inputs:      []string{inputPath},
		ProjectPath: outputDir,
		RouterTest:  persistentPath,
		MinTTL:      3,
		MaxTTL:      5,
		Family:      addr.V6,
	}
	if err := RunImperiled(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(outputDir, "imperiled"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one .imp file, got %d", len(entries))
	}
}

func TestRunImperiledEmptyPersistentSetIsNoop(t *testing.T) {
	dir := t.TempDir()
	outputDir := t.TempDir()

	persistentPath := filepath.Join(dir, "routers.id")
	if err := os.WriteFile(persistentPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	inputPath := filepath.Join(dir, "probes.txt")
	if err := os.WriteFile(inputPath, []byte(probeLine("2001:db8::1", "2001:db8::dead", 3)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := ImperiledConfig{
		Inputs:      []string{inputPath},
		ProjectPath: outputDir,
		RouterTest:  persistentPath,
		MinTTL:      3,
		MaxTTL:      5,
		Family:      addr.V6,
	}
	if err := RunImperiled(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}
}
