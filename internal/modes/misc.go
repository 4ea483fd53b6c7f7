// misc.go binds the remaining out-of-scope external modes (spec.md §1) at
// the interface level only: flags are parsed and validated, and each
// RunXxx function does the part that belongs to the core (reading the
// loop store, computing from already-built artifacts) while leaving the
// genuinely external part — an active probing campaign, the ZMAP
// post-process, an Elasticsearch bulk upload — represented by a narrow
// collaborator interface the caller supplies, per SPEC_FULL.md §5.
package modes

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/asntree"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/poststats"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// StatsConfig holds the `stats` command's flags: a plain summary of one
// project directory's loop store, independent of any BGP table.
type StatsConfig struct {
	ProjectPath string
	Family      addr.Family
	Output      string
}

// RunStats writes a one-line-per-metric summary CSV from a project
// directory's identifiers.id/routers.id, without needing ASN attribution.
func RunStats(cfg StatsConfig, log *zerolog.Logger) error {
	agg, err := poststats.Load(cfg.ProjectPath, cfg.Family, asntree.New(cfg.Family), log)
	if err != nil {
		return err
	}
	unique, total, err := agg.LengthDistribution()
	if err != nil {
		return err
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "metric,value")
	fmt.Fprintf(w, "loop_ids,%d\n", len(agg.Identifiers))
	fmt.Fprintf(w, "routers,%d\n", len(agg.Routers))
	for n, u := range unique {
		fmt.Fprintf(w, "loops_of_length_%d,%d\n", n, u)
		fmt.Fprintf(w, "shadowed_destinations_of_length_%d,%d\n", n, total[n])
	}
	return w.Flush()
}

// ScatterTarget is the external collaborator a real `scatter` command would
// call into to actually fire probes; RunScatter's job ends at handing it a
// target list, the same boundary spec.md §1 draws around active probing.
type ScatterTarget interface {
	Scatter(targets []string) error
}

// ScatterConfig holds the `scatter` command's flags: spread a target list
// across --fanout collaborators (e.g. one probing process per vantage
// point) in round-robin order.
type ScatterConfig struct {
	TargetList string
	Fanout     int
}

// RunScatter reads cfg.TargetList and round-robins it across fanout
// collaborators, returning once every collaborator has been handed its
// share. The probing itself is out of scope; collaborators is supplied by
// the caller (one per vantage point).
func RunScatter(cfg ScatterConfig, collaborators []ScatterTarget, log *zerolog.Logger) error {
	if len(collaborators) == 0 {
		return yerr.New(yerr.NotFound, "scatter: no collaborators configured")
	}
	targets, err := readLineSet(cfg.TargetList)
	if err != nil {
		return err
	}
	buckets := make([][]string, len(collaborators))
	for i, t := range targets {
		buckets[i%len(collaborators)] = append(buckets[i%len(collaborators)], t)
	}
	for i, c := range collaborators {
		if err := c.Scatter(buckets[i]); err != nil {
			return err
		}
	}
	log.Info().Int("targets", len(targets)).Int("collaborators", len(collaborators)).Msg("scatter: dispatch complete")
	return nil
}

// P50TargetConfig holds `p50target`'s flags: pick one candidate
// destination per loop for a follow-up probing round to re-check.
type P50TargetConfig struct {
	ProjectPath string
	Family      addr.Family
	Output      string
}

// RunP50Target writes one destination per loop id — the entry at the
// middle position of its loops/<id>.dest file, in file (scan) order, as a
// stand-in for "the middle of the pack". The destinations are not sorted,
// and per-destination RTT data, which lives outside the store, is not used.
func RunP50Target(cfg P50TargetConfig, log *zerolog.Logger) error {
	agg, err := poststats.Load(cfg.ProjectPath, cfg.Family, asntree.New(cfg.Family), log)
	if err != nil {
		return err
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for loopID := range agg.Identifiers {
		dests, err := agg.DestinationsOf(loopID)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			continue
		}
		median := dests[len(dests)/2]
		if _, err := fmt.Fprintf(w, "%s,%s\n", loopID, median.String()); err != nil {
			return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
		}
	}
	return w.Flush()
}

// P50AnalysisConfig holds `p50analysis`'s flags: compare a follow-up
// p50target probing round's results against the original store to report
// how many of the sampled destinations still reproduce a loop.
type P50AnalysisConfig struct {
	ProjectPath   string
	FollowupInput string // a fresh loops-mode style .dest-equivalent listing which destinations still looped
	Output        string
}

// RunP50Analysis cross-references followup's destinations against the
// original project's shadowed set, reporting the reproduction rate.
func RunP50Analysis(cfg P50AnalysisConfig, log *zerolog.Logger) error {
	followup, err := readLineSet(cfg.FollowupInput)
	if err != nil {
		return err
	}
	loopsDir := filepath.Join(cfg.ProjectPath, "loops")
	entries, err := os.ReadDir(loopsDir)
	if err != nil {
		return yerr.Wrap(yerr.CannotRead, loopsDir, err)
	}
	original := make(map[string]struct{})
	for _, e := range entries {
		lines, err := readLinesIfExists(filepath.Join(loopsDir, e.Name()))
		if err != nil {
			return err
		}
		for _, l := range lines {
			original[l] = struct{}{}
		}
	}

	reproduced := 0
	for _, dest := range followup {
		if _, ok := original[dest]; ok {
			reproduced++
		}
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "followup_count,reproduced_count\n%d,%d\n", len(followup), reproduced)
	log.Info().Int("followup", len(followup)).Int("reproduced", reproduced).Msg("p50analysis: comparison complete")
	return nil
}

// ExportSink is the external collaborator a real `export` command hands
// its rows to (e.g. an Elasticsearch bulk client); spec.md §1 keeps the
// actual remote upload out of scope, so a RemoteServiceError from Sink
// propagates straight back to the caller per §7's error taxonomy.
type ExportSink interface {
	Export(rows []map[string]string) error
}

// ExportConfig holds the `export` command's flags.
type ExportConfig struct {
	ProjectPath string
	Family      addr.Family
}

// RunExport reads the project's loops.csv-equivalent rows and hands them to
// sink in one batch.
func RunExport(cfg ExportConfig, sink ExportSink, log *zerolog.Logger) error {
	agg, err := poststats.Load(cfg.ProjectPath, cfg.Family, asntree.New(cfg.Family), log)
	if err != nil {
		return err
	}
	var rows []map[string]string
	for loopID, members := range agg.Identifiers {
		rows = append(rows, map[string]string{
			"loop_id":      loopID,
			"member_count": fmt.Sprintf("%d", len(members)),
		})
	}
	if err := sink.Export(rows); err != nil {
		return yerr.Wrap(yerr.RemoteServiceError, "", err)
	}
	log.Info().Int("rows", len(rows)).Msg("export: dispatch complete")
	return nil
}
