// Package imperiled implements the imperiled-destination analyzer of
// spec.md §4.F: given a set of persistently looping routers (found by a
// prior `loops` run), flag every non-looping destination whose path crosses
// one of them and record it in a per-router `.imp` file. Grounded on
// loopstore's storage-directory conventions (per-key append-only files) and
// on route.Route's record list, which §4.F walks hop by hop.
package imperiled

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/loopstore"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/route"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// Analyzer holds the persistent-router set (post blocklist filtering) and
// the per-router .imp writers opened lazily as routers are first hit.
type Analyzer struct {
	storagePath string
	persistent  map[addr.Addr]struct{}
	dryRun      bool
	writers     map[addr.Addr]*loopstore.CountingWriter
	log         *zerolog.Logger
}

// New builds an Analyzer over persistent (the "P" set from spec.md §4.F),
// after removing any router whose address falls inside one of blocklist's
// CIDRs. dryRun threads through to every per-router CountingWriter the same
// way it does in internal/loopstore.Store, so `imperiled --dry-run` still
// reports counts without writing .imp files.
func New(storagePath string, persistent map[addr.Addr]struct{}, blocklist []addr.Network, dryRun bool, log *zerolog.Logger) *Analyzer {
	filtered := make(map[addr.Addr]struct{}, len(persistent))
	for p := range persistent {
		blocked := false
		for _, net := range blocklist {
			if net.Contains(p) {
				blocked = true
				break
			}
		}
		if !blocked {
			filtered[p] = struct{}{}
		}
	}
	return &Analyzer{
		storagePath: storagePath,
		persistent:  filtered,
		dryRun:      dryRun,
		writers:     make(map[addr.Addr]*loopstore.CountingWriter),
		log:         log,
	}
}

// Empty reports whether the analyzer has no persistent routers to check
// against, in which case Process is a guaranteed no-op (§4.F short-circuit).
func (a *Analyzer) Empty() bool { return len(a.persistent) == 0 }

// Process flags r as imperiled if any of its hops (other than the
// destination itself) is a persistently looping router. Already-looping
// routes are skipped, since a route cannot be both looping and imperiled.
func (a *Analyzer) Process(r *route.Route) error {
	if a.Empty() || r.IsLooping {
		return nil
	}

	seen := make(map[addr.Addr]struct{})
	for _, rec := range r.Records {
		if rec.Hop.Equal(r.Destination) {
			continue
		}
		if _, ok := a.persistent[rec.Hop]; !ok {
			continue
		}
		if _, already := seen[rec.Hop]; already {
			continue
		}
		seen[rec.Hop] = struct{}{}

		r.IsImperiled = true
		r.ImperiledRouters = append(r.ImperiledRouters, rec.Hop)

		w, err := a.writerFor(rec.Hop)
		if err != nil {
			return err
		}
		w.WriteLine(r.Destination.String())
	}
	return nil
}

func (a *Analyzer) writerFor(router addr.Addr) (*loopstore.CountingWriter, error) {
	if w, ok := a.writers[router]; ok {
		return w, nil
	}
	dir := filepath.Join(a.storagePath, loopstore.ImperiledDir)
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, router.String()+".imp")
	w, err := loopstore.NewCountingWriter(path, a.dryRun)
	if err != nil {
		return nil, err
	}
	a.writers[router] = w
	return w, nil
}

// Close flushes and closes every opened .imp writer.
func (a *Analyzer) Close() error {
	var firstErr error
	for _, w := range a.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return yerr.Wrap(yerr.CannotWrite, dir, err)
	}
	return nil
}
