// loops.go implements the `loops` command of spec.md §6: stream one or more
// probe-line files through the route builder, feed looping routes to
// internal/loopstore and non-looping ones through the optional imperiled
// analyzer, then flush both stores. Grounded on the teacher's per-mode
// driver functions in main.go, which each open their inputs, build a
// processing object, and loop until EOF.
package modes

import (
	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/imperiled"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/input"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/loopstore"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/probe"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/route"
)

// LoopsConfig holds `loops`'s flags (spec.md §6 / SPEC_FULL.md §5).
type LoopsConfig struct {
	Inputs                     []string
	LoopOutput                 string
	OnlyFullLoops              bool
	MinTTL, MaxTTL             uint8
	Family                     addr.Family
	ImperiledRouterTest        string // a routers.id-format file naming the persistent set
	ImperiledBlocklistPrefixes string // one CIDR per line
	DryRun                     bool
}

// RunLoops drives the `loops` command end to end.
func RunLoops(cfg LoopsConfig, log *zerolog.Logger) error {
	store, err := loopstore.New(cfg.LoopOutput, cfg.OnlyFullLoops, cfg.DryRun, log)
	if err != nil {
		return err
	}

	var analyzer *imperiled.Analyzer
	if cfg.ImperiledRouterTest != "" {
		persistent, blocklist, err := loadImperiledInputs(cfg.ImperiledRouterTest, cfg.ImperiledBlocklistPrefixes, cfg.Family)
		if err != nil {
			return err
		}
		analyzer = imperiled.New(cfg.LoopOutput, persistent, blocklist, cfg.DryRun, log)
	}

	driver := input.New(cfg.Family, cfg.MinTTL, cfg.MaxTTL, log)
	onRoute := func(r *route.Route) error {
		if err := store.AddRouteInformation(r); err != nil {
			log.Warn().Err(err).Str("destination", r.Destination.String()).Msg("loops: dropping route, store admission failed")
			return nil
		}
		if analyzer != nil {
			if err := analyzer.Process(r); err != nil {
				log.Warn().Err(err).Str("destination", r.Destination.String()).Msg("loops: imperiled analysis failed for route")
			}
		}
		return nil
	}
	onMeta := func(m probe.Metadata) {
		log.Info().Str("key", m.Key).Str("value", m.Value).Msg("loops: input metadata")
	}

	if err := driver.Stream(cfg.Inputs, onRoute, onMeta); err != nil {
		return err
	}
	if analyzer != nil {
		if err := analyzer.Close(); err != nil {
			return err
		}
	}
	return store.UpdateStatistics()
}

// loadImperiledInputs reads the persistent-router set (routers.id format,
// per spec.md §6) and the blocklist (one CIDR per line).
func loadImperiledInputs(routerTestPath, blocklistPath string, fam addr.Family) (map[addr.Addr]struct{}, []addr.Network, error) {
	persistent, err := readAddrSet(routerTestPath, fam)
	if err != nil {
		return nil, nil, err
	}
	var blocklist []addr.Network
	if blocklistPath != "" {
		blocklist, err = readNetworkList(blocklistPath)
		if err != nil {
			return nil, nil, err
		}
	}
	return persistent, blocklist, nil
}
