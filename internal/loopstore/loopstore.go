// Package loopstore implements the loop inventory of SPEC_FULL.md §4.E /
// spec.md §4.E: content-addressed loop identifiers, the inverted
// router<->loop indexes, the append-only per-loop destination files, and the
// shadowed-preceding CSV trail. Grounded on
// original_source/.../analytics/loop_storage.rs (LoopStorage, identifier
// hashing, update_identifiers/update_router_hops) and
// original_source/.../structs/{loop_info,couting_file}.rs (SimpleLoopOutput,
// CountingFile/CountingVoid).
package loopstore

import (
	"crypto/md5"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/idfile"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/route"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// File names under a storage directory (loop_storage.rs's constants).
const (
	IdentifiersFile      = "identifiers.id"
	RoutersFile          = "routers.id"
	StatsFile            = "stats.csv"
	LoopsDir             = "loops"
	ImperiledDir         = "imperiled"
	LoopsCSV             = "loops.csv"
	ShadowedPrecedingCSV = "shadowed_preceding.csv"
)

// CreateLoopIdentifier content-addresses a loop: its routers are sorted by
// address and hashed with MD5 over their raw octets, so the same router set
// always yields the same identifier regardless of discovery order.
func CreateLoopIdentifier(routers map[addr.Addr]struct{}) (string, error) {
	if len(routers) == 0 {
		return "", yerr.New(yerr.SerializationError, "loopstore: nothing to hash")
	}
	sorted := make([]addr.Addr, 0, len(routers))
	for r := range routers {
		sorted = append(sorted, r)
	}
	// insertion sort by Less, ascending — loop sets are small (a handful of
	// routers), so this avoids pulling in sort.Slice for a closure capture.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Less(sorted[j-1]); j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	h := md5.New()
	for _, r := range sorted {
		h.Write(r.Octets())
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// LoopInfo is the per-(loop, preceding-router) summary row persisted to
// loops.csv, grounded on loop_info.rs's SimpleLoopOutput.
type LoopInfo struct {
	LoopID             string `csv:"loop_id"`
	PrecedingRouter    string `csv:"preceding_router"`
	ShadowedNets       uint64 `csv:"shadowed_nets"`
	LoopLen            uint8  `csv:"loop_len"`
	LoopStartTTL       uint8  `csv:"loop_start_ttl"`
	LoopStopTTL        uint8  `csv:"loop_stop_ttl"`
	PrecedingRouterTTL uint8  `csv:"preceding_router_ttl"`
}

// FromRoute builds the initial LoopInfo row for a freshly seen loop.
func FromRoute(loopID string, r *route.Route) LoopInfo {
	preceding, ttl := r.PrecedingRouterNamed()
	return LoopInfo{
		LoopID:             loopID,
		PrecedingRouter:    preceding,
		LoopLen:            r.LoopLen(),
		LoopStartTTL:       r.LoopStart,
		LoopStopTTL:        r.LoopEnd,
		PrecedingRouterTTL: ttl,
	}
}

// Append folds other into li, counting another shadowed destination.
// Mismatched identity fields (loop id, preceding router/ttl) are a caller
// bug, logged and otherwise ignored rather than corrupting the count.
func (li *LoopInfo) Append(other LoopInfo, log *zerolog.Logger) {
	if li.LoopID != other.LoopID {
		log.Warn().Msg("loopstore: loop id does not match on merge")
		return
	}
	if li.PrecedingRouter != other.PrecedingRouter {
		log.Warn().Msg("loopstore: preceding router does not match on merge")
		return
	}
	if li.PrecedingRouterTTL != other.PrecedingRouterTTL {
		log.Warn().Msg("loopstore: preceding router ttl does not match on merge")
		return
	}
	li.ShadowedNets += other.ShadowedNets
}

// ShadowedPreceding is one row of shadowed_preceding.csv: which destination
// was shadowed, by which loop, behind which preceding router.
type ShadowedPreceding struct {
	ShadowedNet      string `csv:"shadowed_net"`
	PrecedingRouter  string `csv:"preceding_router"`
	PrecedingTTL     uint8  `csv:"preceding_ttl"`
	LoopID           string `csv:"loop_id"`
}

// loopInfoKey identifies one LoopInfo row: a loop can be entered from more
// than one preceding router, so identity is (loop id, preceding router).
type loopInfoKey struct {
	loopID, precedingRouter string
}

// Store accumulates loop observations for one TTL sweep and flushes them to
// a storage directory on UpdateStatistics, mirroring LoopStorage<T>.
type Store struct {
	log            *zerolog.Logger
	storagePath    string
	onlyFullLoops  bool
	dryRun         bool
	loopMembers    map[string]map[addr.Addr]struct{}
	routerLoops    map[addr.Addr]idfile.Set
	loopInfo       map[loopInfoKey]*LoopInfo
	destFiles      map[string]*CountingWriter
	shadowedWriter *csv.Writer
	shadowedFile   *os.File
}

// New opens a Store rooted at storagePath. It starts with an empty
// in-memory loopInfo map; an existing loops.csv there is left untouched
// until something reads it back (loopstore.ReadLoopInfo, used by the
// mergeid command), so a single Store's lifetime always accumulates
// shadowed-net counts from scratch rather than resuming a prior run.
// dryRun threads through to every per-loop CountingWriter
// (internal/loopstore.CountingWriter), the ported CountingEntity
// abstraction (SPEC_FULL.md §4 supplemented features): a dry run still counts
// destinations per loop but never touches disk.
func New(storagePath string, onlyFullLoops, dryRun bool, log *zerolog.Logger) (*Store, error) {
	s := &Store{
		log:           log,
		storagePath:   storagePath,
		onlyFullLoops: onlyFullLoops,
		dryRun:        dryRun,
		loopMembers:   make(map[string]map[addr.Addr]struct{}),
		routerLoops:   make(map[addr.Addr]idfile.Set),
		loopInfo:      make(map[loopInfoKey]*LoopInfo),
		destFiles:     make(map[string]*CountingWriter),
	}
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, yerr.Wrap(yerr.CannotWrite, storagePath, err)
	}
	return s, nil
}

func (s *Store) storageFile(name string) string { return filepath.Join(s.storagePath, name) }

func (s *Store) storageSubDir(name string) (string, error) {
	dir := s.storageFile(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", yerr.Wrap(yerr.CannotWrite, dir, err)
	}
	return dir, nil
}

func (s *Store) openShadowedWriter() error {
	if s.shadowedWriter != nil {
		return nil
	}
	path := s.storageFile(ShadowedPrecedingCSV)
	writeHeader := true
	if _, err := os.Stat(path); err == nil {
		writeHeader = false
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	s.shadowedFile = f
	s.shadowedWriter = csv.NewWriter(f)
	if writeHeader {
		s.shadowedWriter.Write([]string{"shadowed_net", "preceding_router", "preceding_ttl", "loop_id"})
	}
	return nil
}

// AddRouteInformation records one route's loop, if it is looping (and, when
// onlyFullLoops is set, only if the loop is full). It is a no-op for
// non-looping routes.
func (s *Store) AddRouteInformation(r *route.Route) error {
	if !r.IsLooping || (s.onlyFullLoops && !r.HasFullLoop) {
		return nil
	}
	if err := s.openShadowedWriter(); err != nil {
		return err
	}

	loopMembers := r.LoopRouters()
	precedingRouter, precedingTTL := r.PrecedingRouterNamed()

	identifier, err := CreateLoopIdentifier(loopMembers)
	if err != nil {
		s.log.Error().
			Int("loop_members", len(loopMembers)).
			Bool("is_looping", r.IsLooping).
			Bool("has_full_loop", r.HasFullLoop).
			Str("destination", r.Destination.String()).
			Msg("loopstore: could not compute identifier for route")
		return yerr.Wrap(yerr.CannotParse, "", err)
	}

	key := loopInfoKey{identifier, precedingRouter}

	if _, ok := s.loopMembers[identifier]; !ok {
		s.loopMembers[identifier] = loopMembers
	}
	info, ok := s.loopInfo[key]
	if !ok {
		fresh := FromRoute(identifier, r)
		info = &fresh
		s.loopInfo[key] = info
	}
	info.ShadowedNets++

	for router := range loopMembers {
		set, ok := s.routerLoops[router]
		if !ok {
			set = make(idfile.Set)
			s.routerLoops[router] = set
		}
		set.Add(identifier)
	}

	dest, ok := s.destFiles[identifier]
	if !ok {
		subDir, err := s.storageSubDir(LoopsDir)
		if err != nil {
			return err
		}
		dest, err = NewCountingWriter(filepath.Join(subDir, identifier+".dest"), s.dryRun)
		if err != nil {
			return err
		}
		s.destFiles[identifier] = dest
	}
	dest.WriteLine(r.Destination.String())

	s.shadowedWriter.Write([]string{
		r.Destination.String(),
		precedingRouter,
		fmt.Sprintf("%d", precedingTTL),
		identifier,
	})
	return nil
}

// UpdateStatistics flushes the accumulated identifiers.id, routers.id and
// loops.csv files to storagePath (LoopStorage::update_statistics).
func (s *Store) UpdateStatistics() error {
	if err := s.updateIdentifiers(); err != nil {
		return err
	}
	if err := s.updateRouterHops(); err != nil {
		return err
	}
	if err := s.storeLoopInfo(); err != nil {
		return err
	}
	for _, f := range s.destFiles {
		f.Close()
	}
	if s.shadowedWriter != nil {
		s.shadowedWriter.Flush()
	}
	if s.shadowedFile != nil {
		s.shadowedFile.Close()
	}
	return nil
}

func (s *Store) updateIdentifiers() error {
	path := s.storageFile(IdentifiersFile)
	previous, err := idfile.Read(path)
	if err != nil {
		return err
	}

	fresh := make(idfile.Map, len(s.loopMembers))
	for identifier, routers := range s.loopMembers {
		set := make(idfile.Set, len(routers))
		for r := range routers {
			set.Add(r.String())
		}
		fresh[identifier] = set
	}

	total, err := idfile.AppendNew(path, previous, fresh)
	if err != nil {
		return err
	}
	s.log.Info().Int("total_identifiers", total).Msg("loopstore: wrote new loop identifiers")
	return nil
}

func (s *Store) updateRouterHops() error {
	path := s.storageFile(RoutersFile)
	routers, err := idfile.Read(path)
	if err != nil {
		return err
	}

	fresh := make(idfile.Map, len(s.routerLoops))
	for router, ids := range s.routerLoops {
		fresh[router.String()] = ids
	}
	idfile.Merge(routers, fresh)

	if err := idfile.Write(path, routers); err != nil {
		return err
	}
	s.log.Info().Int("total_routers", len(routers)).Msg("loopstore: wrote merged router set")
	return nil
}

func (s *Store) storeLoopInfo() error {
	path := s.storageFile(LoopsCSV)
	f, err := os.Create(path)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"loop_id", "preceding_router", "shadowed_nets", "loop_len", "loop_start_ttl", "loop_stop_ttl", "preceding_router_ttl"})
	for _, info := range s.loopInfo {
		w.Write([]string{
			info.LoopID,
			info.PrecedingRouter,
			fmt.Sprintf("%d", info.ShadowedNets),
			fmt.Sprintf("%d", info.LoopLen),
			fmt.Sprintf("%d", info.LoopStartTTL),
			fmt.Sprintf("%d", info.LoopStopTTL),
			fmt.Sprintf("%d", info.PrecedingRouterTTL),
		})
	}
	w.Flush()
	return w.Error()
}

// ReadLoopInfo loads an existing loops.csv, keyed by (loop id, preceding
// router). The mergeid command calls it; New does not.
func ReadLoopInfo(path string) (map[loopInfoKey]*LoopInfo, error) {
	out := make(map[loopInfoKey]*LoopInfo)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, yerr.Wrap(yerr.CannotRead, path, err)
	}
	for i, row := range records {
		if i == 0 || len(row) != 7 {
			continue
		}
		var info LoopInfo
		info.LoopID = row[0]
		info.PrecedingRouter = row[1]
		fmt.Sscanf(row[2], "%d", &info.ShadowedNets)
		fmt.Sscanf(row[3], "%d", &info.LoopLen)
		fmt.Sscanf(row[4], "%d", &info.LoopStartTTL)
		fmt.Sscanf(row[5], "%d", &info.LoopStopTTL)
		fmt.Sscanf(row[6], "%d", &info.PrecedingRouterTTL)
		out[loopInfoKey{info.LoopID, info.PrecedingRouter}] = &info
	}
	return out, nil
}
