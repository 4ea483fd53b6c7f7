package poststats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/asntree"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
)

func TestEmitAdvancedLoopInfoAddsColumns(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir)

	tree := asntree.New(addr.V6)
	tree.AddNetwork(mustNet(t, "2001:db8::", 32), "64500")

	agg, err := Load(dir, addr.V6, tree, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	attr, err := BuildAttribution(tree, agg.Identifiers, agg.Routers)
	if err != nil {
		t.Fatal(err)
	}

	if err := agg.EmitAdvancedLoopInfo(attr, idfile.NewSet()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "loops.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "number_asn") {
		t.Fatalf("loops.csv missing advanced column header: %s", data)
	}
}

func TestEmitPostloopStatsAdvancedWritesCounterColumns(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir)

	tree := asntree.New(addr.V6)
	agg, err := Load(dir, addr.V6, tree, obslog.Global())
	if err != nil {
		t.Fatal(err)
	}
	attr, err := BuildAttribution(tree, agg.Identifiers, agg.Routers)
	if err != nil {
		t.Fatal(err)
	}
	if err := agg.EmitPostloopStatsAdvanced(attr); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "postloop_stats.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "dest_domain_involved") {
		t.Fatalf("postloop_stats.csv missing counter column header: %s", data)
	}
}
