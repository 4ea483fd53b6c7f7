package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/probe"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/route"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStreamGroupsByDestinationAndEmitsRoutes(t *testing.T) {
	dir := t.TempDir()
	content := "" +
		"# source: test-vp\n" +
		"2001:db8::1 0 0 3 0 3 2001:db8::3 0 0 0 0 0 0 - 1\n" +
		"2001:db8::1 0 0 3 0 4 2001:db8::4 0 0 0 0 0 0 - 1\n" +
		"2001:db8::2 0 0 3 0 3 2001:db8::33 0 0 0 0 0 0 - 1\n" +
		"2001:db8::2 0 0 129 0 4 2001:db8::2 0 0 0 0 0 0 - 1\n"
	path := writeFile(t, dir, "probes.txt", content)

	var metas []probe.Metadata
	var routes []*route.Route
	d := New(addr.V6, 3, 4, obslog.Global())
	err := d.Stream([]string{path},
		func(r *route.Route) error {
			routes = append(routes, r)
			return nil
		},
		func(m probe.Metadata) { metas = append(metas, m) },
	)
	if err != nil {
		t.Fatal(err)
	}

	if len(metas) != 1 || metas[0].Key != "source" || metas[0].Value != "test-vp" {
		t.Fatalf("unexpected metadata: %+v", metas)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes (one per destination), got %d", len(routes))
	}
	dest1 := mustAddr(t, "2001:db8::1")
	dest2 := mustAddr(t, "2001:db8::2")
	if !routes[0].Destination.Equal(dest1) {
		t.Fatalf("expected first route for %s, got %s", dest1, routes[0].Destination)
	}
	if !routes[1].Destination.Equal(dest2) {
		t.Fatalf("expected second route for %s, got %s", dest2, routes[1].Destination)
	}
}

func TestStreamDropsUnparseableLines(t *testing.T) {
	dir := t.TempDir()
	content := "this is not a probe line\n" +
		"2001:db8::1 0 0 129 0 3 2001:db8::1 0 0 0 0 0 0 - 1\n"
	path := writeFile(t, dir, "probes.txt", content)

	var routes []*route.Route
	d := New(addr.V6, 3, 3, obslog.Global())
	err := d.Stream([]string{path}, func(r *route.Route) error {
		routes = append(routes, r)
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected the malformed line to be dropped and one route emitted, got %d", len(routes))
	}
}

func mustAddr(t *testing.T, s string) addr.Addr {
	t.Helper()
	a, err := addr.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}
