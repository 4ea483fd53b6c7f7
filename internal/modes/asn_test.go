package modes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
)

func TestRunASNTalliesPerASNCounts(t *testing.T) {
	dir := t.TempDir()
	rvPath := filepath.Join(dir, "routeviews.tsv")
	rv := "10.0.0.0\t8\t64500\n192.168.0.0\t16\t64501\n"
	if err := os.WriteFile(rvPath, []byte(rv), 0o644); err != nil {
		t.Fatal(err)
	}
	inputPath := filepath.Join(dir, "addrs.txt")
	addrs := "10.0.0.1\n10.0.0.2\n192.168.0.1\n203.0.113.1\n"
	if err := os.WriteFile(inputPath, []byte(addrs), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "asn.csv")

	cfg := ASNConfig{Routeviews: rvPath, Output: outPath, Family: addr.V4, Inputs: []string{inputPath}}
	if err := RunASN(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "asn,num_ips") {
		t.Fatalf("asn.csv missing header: %s", out)
	}
	if !strings.Contains(string(out), "64500,2") {
		t.Fatalf("asn.csv missing 2 hits for AS64500: %s", out)
	}
	if !strings.Contains(string(out), "64501,1") {
		t.Fatalf("asn.csv missing 1 hit for AS64501: %s", out)
	}
	// 203.0.113.1 matches no prefix and must not appear as a row.
	if strings.Contains(string(out), "203.0.113.1") {
		t.Fatalf("asn.csv should not contain an unattributed address: %s", out)
	}
}

func TestRunASNMissingRouteviewsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := ASNConfig{
		Routeviews: filepath.Join(dir, "does-not-exist.tsv"),
		Output:     filepath.Join(dir, "asn.csv"),
		Family:     addr.V4,
	}
	if err := RunASN(cfg, obslog.Global()); err == nil {
		t.Fatal("expected an error for a missing routeviews file")
	}
}
