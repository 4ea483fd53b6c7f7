// imperiled_mode.go implements the standalone `imperiled` command: run the
// imperiled-destination analyzer (internal/imperiled) over a fresh input
// stream against an existing project's persistent-router set, without also
// running loop detection (unlike `loops --imperiled-router-test`, which
// does both in one pass).
package modes

import (
	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/imperiled"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/input"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/probe"
)

// ImperiledConfig holds the standalone `imperiled` command's flags.
type ImperiledConfig struct {
	Inputs            []string
	ProjectPath       string
	RouterTest        string
	BlocklistPrefixes string
	MinTTL, MaxTTL    uint8
	Family            addr.Family
	DryRun            bool
}

// RunImperiled drives the standalone `imperiled` command.
func RunImperiled(cfg ImperiledConfig, log *zerolog.Logger) error {
	persistent, blocklist, err := loadImperiledInputs(cfg.RouterTest, cfg.BlocklistPrefixes, cfg.Family)
	if err != nil {
		return err
	}
	analyzer := imperiled.New(cfg.ProjectPath, persistent, blocklist, cfg.DryRun, log)

	driver := input.New(cfg.Family, cfg.MinTTL, cfg.MaxTTL, log)
	err = driver.Stream(cfg.Inputs, analyzer.Process, func(probe.Metadata) {})
	if err != nil {
		return err
	}
	return analyzer.Close()
}
