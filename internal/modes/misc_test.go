package modes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
)

func TestRunStatsSummarizesProject(t *testing.T) {
	projectDir := buildProjectDir(t, "2001:db8::1")
	output := filepath.Join(t.TempDir(), "stats.csv")

	cfg := StatsConfig{ProjectPath: projectDir, Family: addr.V6, Output: output}
	if err := RunStats(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "loop_ids,1") {
		t.Fatalf("stats.csv missing loop_ids row: %s", data)
	}
}

type fakeScatterTarget struct {
	received []string
}

func (f *fakeScatterTarget) Scatter(targets []string) error {
	f.received = append(f.received, targets...)
	return nil
}

func TestRunScatterRoundRobins(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "targets.txt")
	if err := os.WriteFile(input, []byte("a\nb\nc\nd\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c1 := &fakeScatterTarget{}
	c2 := &fakeScatterTarget{}

	cfg := ScatterConfig{TargetList: input, Fanout: 2}
	if err := RunScatter(cfg, []ScatterTarget{c1, c2}, obslog.Global()); err != nil {
		t.Fatal(err)
	}
	if len(c1.received)+len(c2.received) != 4 {
		t.Fatalf("expected 4 targets dispatched total, got %d + %d", len(c1.received), len(c2.received))
	}
}

func TestRunScatterNoCollaborators(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "targets.txt")
	if err := os.WriteFile(input, []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := ScatterConfig{TargetList: input}
	if err := RunScatter(cfg, nil, obslog.Global()); err == nil {
		t.Fatal("expected an error with zero collaborators")
	}
}

func TestRunP50TargetPicksOneDestinationPerLoop(t *testing.T) {
	projectDir := buildProjectDir(t, "2001:db8::1")
	output := filepath.Join(t.TempDir(), "p50.csv")

	cfg := P50TargetConfig{ProjectPath: projectDir, Family: addr.V6, Output: output}
	if err := RunP50Target(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "2001:db8::1") {
		t.Fatalf("p50 output missing the expected destination: %s", data)
	}
}

func TestRunP50AnalysisReportsReproduction(t *testing.T) {
	projectDir := buildProjectDir(t, "2001:db8::1")
	followup := filepath.Join(t.TempDir(), "followup.txt")
	if err := os.WriteFile(followup, []byte("2001:db8::1\n2001:db8::9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(t.TempDir(), "p50analysis.csv")

	cfg := P50AnalysisConfig{ProjectPath: projectDir, FollowupInput: followup, Output: output}
	if err := RunP50Analysis(cfg, obslog.Global()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), fmt.Sprintf("%d,%d", 2, 1)) {
		t.Fatalf("p50analysis.csv = %s, want followup_count=2 reproduced_count=1", data)
	}
}

type fakeExportSink struct {
	rows []map[string]string
}

func (f *fakeExportSink) Export(rows []map[string]string) error {
	f.rows = rows
	return nil
}

func TestRunExportHandsRowsToSink(t *testing.T) {
	projectDir := buildProjectDir(t, "2001:db8::1")
	sink := &fakeExportSink{}

	cfg := ExportConfig{ProjectPath: projectDir, Family: addr.V6}
	if err := RunExport(cfg, sink, obslog.Global()); err != nil {
		t.Fatal(err)
	}
	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(sink.rows))
	}
	if sink.rows[0]["loop_id"] == "" {
		t.Fatalf("exported row missing loop_id: %+v", sink.rows[0])
	}
}
