// mergeid.go implements the `mergeid` command: cross-run merge of several
// project directories' stores into one (spec.md §4.E "Cross-run merge").
// Grounded on original_source/.../analytics/loop_storage.rs's
// merge_id_file/merge_id_file_string for the union semantics, and on
// rib.go's pool.Launch_pool(16, collectors, f) fan-out for parallelizing
// the per-directory read, reused here via internal/concurrency.
package modes

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/concurrency"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/loopstore"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// MergeIDConfig holds `mergeid`'s flags.
type MergeIDConfig struct {
	Output string
	Inputs []string
}

// perDirResult is what one input project directory contributes to the merge.
type perDirResult struct {
	dir         string
	identifiers idfile.Map
	routers     idfile.Map
	loopInfo    map[string]*loopstore.LoopInfo // keyed loop_id|preceding_router, read back as plain rows
	stats       map[string]uint64
	shadowed    [][]string // shadowed_preceding.csv data rows, header already stripped
	err         error
}

// RunMergeID drives the `mergeid` command: union identifiers.id/routers.id,
// union loops/<id>.dest and imperiled/<router>.imp destination sets,
// field-wise-sum stats.csv, sum shadowed_nets in loops.csv via
// loopstore.LoopInfo.Append, and concatenate shadowed_preceding.csv.
func RunMergeID(cfg MergeIDConfig, log *zerolog.Logger) error {
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}

	results := make([]perDirResult, len(cfg.Inputs))
	var mu sync.Mutex
	concurrency.Each(concurrency.DefaultWorkers, cfg.Inputs, func(dir string) {
		r := loadProjectDir(dir, log)
		mu.Lock()
		for i, d := range cfg.Inputs {
			if d == dir {
				results[i] = r
			}
		}
		mu.Unlock()
	})

	identifiers := make(idfile.Map)
	routers := make(idfile.Map)
	loopInfo := make(map[string]*loopstore.LoopInfo)
	stats := make(map[string]uint64)
	var shadowedRows [][]string

	for _, r := range results {
		if r.err != nil {
			return yerr.Wrap(yerr.SerializationError, r.dir, r.err)
		}
		idfile.Merge(identifiers, r.identifiers)
		idfile.Merge(routers, r.routers)
		for key, stat := range r.stats {
			stats[key] += stat
		}
		shadowedRows = append(shadowedRows, r.shadowed...)

		for key, info := range r.loopInfo {
			if existing, ok := loopInfo[key]; ok {
				existing.Append(*info, log)
			} else {
				clone := *info
				loopInfo[key] = &clone
			}
		}
	}

	if err := idfile.Write(filepath.Join(cfg.Output, loopstore.IdentifiersFile), identifiers); err != nil {
		return err
	}
	if err := idfile.Write(filepath.Join(cfg.Output, loopstore.RoutersFile), routers); err != nil {
		return err
	}
	if err := mergeDestFiles(cfg.Inputs, cfg.Output, identifiers, loopstore.LoopsDir, ".dest"); err != nil {
		return err
	}
	if err := mergeDestFiles(cfg.Inputs, cfg.Output, routers, loopstore.ImperiledDir, ".imp"); err != nil {
		return err
	}
	if err := writeLoopsCSV(filepath.Join(cfg.Output, loopstore.LoopsCSV), loopInfo); err != nil {
		return err
	}
	if err := writeStatsCSV(filepath.Join(cfg.Output, loopstore.StatsFile), stats); err != nil {
		return err
	}
	if err := writeShadowedPreceding(filepath.Join(cfg.Output, loopstore.ShadowedPrecedingCSV), shadowedRows); err != nil {
		return err
	}

	log.Info().Int("inputs", len(cfg.Inputs)).Int("identifiers", len(identifiers)).Msg("mergeid: merge complete")
	return nil
}

func loadProjectDir(dir string, log *zerolog.Logger) perDirResult {
	r := perDirResult{dir: dir}
	var err error
	r.identifiers, err = idfile.Read(filepath.Join(dir, loopstore.IdentifiersFile))
	if err != nil {
		r.err = err
		return r
	}
	r.routers, err = idfile.Read(filepath.Join(dir, loopstore.RoutersFile))
	if err != nil {
		r.err = err
		return r
	}
	infos, err := loopstore.ReadLoopInfo(filepath.Join(dir, loopstore.LoopsCSV))
	if err != nil {
		r.err = err
		return r
	}
	r.loopInfo = make(map[string]*loopstore.LoopInfo, len(infos))
	for _, info := range infos {
		key := info.LoopID + "|" + info.PrecedingRouter
		clone := *info
		r.loopInfo[key] = &clone
	}
	r.stats, err = readStatsCSV(filepath.Join(dir, loopstore.StatsFile))
	if err != nil {
		r.err = err
		return r
	}
	shadowedRows, err := readCSVRows(filepath.Join(dir, loopstore.ShadowedPrecedingCSV))
	if err != nil {
		r.err = err
		return r
	}
	if len(shadowedRows) > 0 {
		shadowedRows = shadowedRows[1:] // drop this input's own header row
	}
	r.shadowed = shadowedRows
	return r
}

// mergeDestFiles unions every input directory's per-key append-only files
// (loops/<id>.dest or imperiled/<router>.imp) into the merged output,
// deduplicating lines the way a set union would (spec.md §4.E).
func mergeDestFiles(inputs []string, output string, keys idfile.Map, subdir, suffix string) error {
	outDir := filepath.Join(output, subdir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return yerr.Wrap(yerr.CannotWrite, outDir, err)
	}
	for key := range keys {
		union := make(map[string]struct{})
		var ordered []string
		for _, dir := range inputs {
			path := filepath.Join(dir, subdir, key+suffix)
			lines, err := readLinesIfExists(path)
			if err != nil {
				return err
			}
			for _, line := range lines {
				if _, ok := union[line]; !ok {
					union[line] = struct{}{}
					ordered = append(ordered, line)
				}
			}
		}
		if len(ordered) == 0 {
			continue
		}
		outPath := filepath.Join(outDir, key+suffix)
		f, err := os.Create(outPath)
		if err != nil {
			return yerr.Wrap(yerr.CannotWrite, outPath, err)
		}
		w := bufio.NewWriter(f)
		for _, line := range ordered {
			if _, err := w.WriteString(line + "\n"); err != nil {
				f.Close()
				return yerr.Wrap(yerr.CannotWrite, outPath, err)
			}
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return yerr.Wrap(yerr.CannotWrite, outPath, err)
		}
		f.Close()
	}
	return nil
}

func readLinesIfExists(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			out = append(out, line)
		}
	}
	return out, scanner.Err()
}

func writeLoopsCSV(path string, loopInfo map[string]*loopstore.LoopInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "loop_id,preceding_router,shadowed_nets,loop_len,loop_start_ttl,loop_stop_ttl,preceding_router_ttl")
	for _, info := range loopInfo {
		fmt.Fprintf(w, "%s,%s,%d,%d,%d,%d,%d\n",
			info.LoopID, info.PrecedingRouter, info.ShadowedNets, info.LoopLen,
			info.LoopStartTTL, info.LoopStopTTL, info.PrecedingRouterTTL)
	}
	return w.Flush()
}

func readStatsCSV(path string) (map[string]uint64, error) {
	out := make(map[string]uint64)
	rows, err := readCSVRows(path)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if i == 0 || len(row) != 2 {
			continue
		}
		var v uint64
		fmt.Sscanf(row[1], "%d", &v)
		out[row[0]] = v
	}
	return out, nil
}

func writeStatsCSV(path string, stats map[string]uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "field,value")
	for field, v := range stats {
		fmt.Fprintf(w, "%s,%d\n", field, v)
	}
	return w.Flush()
}

func writeShadowedPreceding(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "shadowed_net,preceding_router,preceding_ttl,loop_id")
	for _, row := range rows {
		for j, col := range row {
			if j > 0 {
				w.WriteString(",")
			}
			w.WriteString(col)
		}
		w.WriteString("\n")
	}
	return w.Flush()
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	return rows, nil
}
