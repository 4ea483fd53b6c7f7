// target.go implements the out-of-scope `target` mode: synthesize N random
// target addresses per input prefix, wrapping internal/addr.RandomTarget
// the way the original's target-generation utility feeds a probing round.
package modes

import (
	"bufio"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/yerr"
)

// TargetConfig holds the `target` command's flags.
type TargetConfig struct {
	Input     string // one CIDR per line
	Output    string
	PerPrefix int
	Family    addr.Family
}

// RunTarget reads cfg.Input's prefixes and writes cfg.PerPrefix random
// target addresses per prefix to cfg.Output.
func RunTarget(cfg TargetConfig, log *zerolog.Logger) error {
	lines, err := readLineSet(cfg.Input)
	if err != nil {
		return err
	}
	out, err := os.Create(cfg.Output)
	if err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	count := 0
	for _, line := range lines {
		n, err := addr.ParseNetwork(line)
		if err != nil || n.Addr.Family() != cfg.Family {
			log.Warn().Str("line", line).Msg("target: skipping unparseable or wrong-family prefix")
			continue
		}
		for i := 0; i < cfg.PerPrefix; i++ {
			t := addr.RandomTarget(rng, n)
			if _, err := w.WriteString(t.String() + "\n"); err != nil {
				return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
			}
			count++
		}
	}
	if err := w.Flush(); err != nil {
		return yerr.Wrap(yerr.CannotWrite, cfg.Output, err)
	}
	log.Info().Int("prefixes", len(lines)).Int("targets", count).Msg("target: generation complete")
	return nil
}
