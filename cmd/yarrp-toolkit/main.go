// Command yarrp-toolkit drives every mode in internal/modes from a single
// cobra-based CLI, the way richdz12-traffic-guard's cmd/main.go wires its
// subcommands: one root command, one cobra.Command per mode, a shared
// zerolog logger built once in main before the root command executes.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/addr"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/modes"
	"github.com/sbaresearch/nlnet-yarrp-toolkit/internal/obslog"
)

var log *zerolog.Logger

func parseFamily(s string) (addr.Family, error) {
	switch strings.ToLower(s) {
	case "ip4", "v4", "4":
		return addr.V4, nil
	case "ip6", "v6", "6":
		return addr.V6, nil
	default:
		return 0, fmt.Errorf("unknown --family %q, want ip4 or ip6", s)
	}
}

func main() {
	l := obslog.New(os.Getenv(obslog.EnvVar))
	obslog.SetGlobal(l)
	log = obslog.Global()

	root := &cobra.Command{
		Use:     "yarrp-toolkit",
		Short:   "Detect and characterize persistent IPv4/IPv6 forwarding loops from traceroute scans",
		Version: "dev",
	}

	root.AddCommand(
		newLoopsCmd(),
		newPostloopStatsCmd(),
		newMergeIDCmd(),
		newASNCmd(),
		newStatsCmd(),
		newReimagineCmd(),
		newChunkCmd(),
		newTargetCmd(),
		newMergeCmd(),
		newImperiledCmd(),
		newScatterCmd(),
		newP50TargetCmd(),
		newP50AnalysisCmd(),
		newExportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLoopsCmd() *cobra.Command {
	var cfg modes.LoopsConfig
	var family string
	cmd := &cobra.Command{
		Use:   "loops INPUT...",
		Short: "Scan probe-line files for looping routes and build a loop store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			cfg.Inputs = args
			return modes.RunLoops(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.LoopOutput, "loop-output", "", "storage directory for the loop store")
	cmd.Flags().BoolVar(&cfg.OnlyFullLoops, "only-full-loops", false, "only record loops with no TTL gap")
	cmd.Flags().Uint8Var(&cfg.MinTTL, "min-ttl", 1, "lowest TTL to scan")
	cmd.Flags().Uint8Var(&cfg.MaxTTL, "max-ttl", 32, "highest TTL to scan")
	cmd.Flags().StringVar(&cfg.ImperiledRouterTest, "imperiled-router-test", "", "routers.id-format file naming the persistent router set")
	cmd.Flags().StringVar(&cfg.ImperiledBlocklistPrefixes, "imperiled-blocklist-prefixes", "", "one CIDR per line to exclude from imperiled analysis")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "count but do not write loop store files")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("loop-output")
	return cmd
}

func newPostloopStatsCmd() *cobra.Command {
	var cfg modes.PostloopStatsConfig
	var family string
	cmd := &cobra.Command{
		Use:   "postloopstats",
		Short: "Attribute a loop store's routers and loops to ASNs and emit every report",
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			return modes.RunPostloopStats(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.ProjectPath, "project-path", "", "a project directory built by `loops`")
	cmd.Flags().StringVar(&cfg.Routeviews, "routeviews", "", "tab-separated BGP table (addr, plen, asn)")
	cmd.Flags().StringVar(&cfg.PersistentLoops, "persistent-loops", "", "id-file naming loops persistent across runs")
	cmd.Flags().StringVar(&cfg.PersistentRouters, "persistent-routers", "", "id-file naming routers persistent across runs")
	cmd.Flags().StringVar(&cfg.TargetList, "target-list", "", "write a target_sample.csv drawn from shadowed destinations")
	cmd.Flags().IntVar(&cfg.TargetNumber, "target-number", 0, "sample size when --target-list is set")
	cmd.Flags().BoolVar(&cfg.TargetTakeAll, "target-take-all", false, "sample every shadowed destination instead of --target-number")
	cmd.Flags().BoolVar(&cfg.SkipDensities, "skip-densities", false, "skip the shadowed/imperiled density reports")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("project-path")
	cmd.MarkFlagRequired("routeviews")
	return cmd
}

func newMergeIDCmd() *cobra.Command {
	var cfg modes.MergeIDConfig
	cmd := &cobra.Command{
		Use:   "mergeid INPUTS...",
		Short: "Merge several project directories' loop stores into one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Inputs = args
			return modes.RunMergeID(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.Output, "output", "", "merged output directory")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newASNCmd() *cobra.Command {
	var cfg modes.ASNConfig
	var family string
	cmd := &cobra.Command{
		Use:   "asn --routeviews FILE --output FILE --family ip4|ip6 INPUT...",
		Short: "Attribute a stream of addresses to ASNs via a BGP table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			cfg.Inputs = args
			return modes.RunASN(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.Routeviews, "routeviews", "", "tab-separated BGP table (addr, plen, asn)")
	cmd.Flags().StringVar(&cfg.Output, "output", "", "output CSV file")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("routeviews")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var cfg modes.StatsConfig
	var family string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a project directory's loop store without a BGP table",
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			return modes.RunStats(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.ProjectPath, "project-path", "", "a project directory built by `loops`")
	cmd.Flags().StringVar(&cfg.Output, "output", "", "output CSV file")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("project-path")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newReimagineCmd() *cobra.Command {
	var cfg modes.ReimagineConfig
	var family string
	cmd := &cobra.Command{
		Use:   "reimagine",
		Short: "Fold a flat address list back into its smallest covering prefix set",
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			return modes.RunReimagine(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.Input, "input", "", "flat address list, one per line")
	cmd.Flags().StringVar(&cfg.Output, "output", "", "output prefix list")
	cmd.Flags().IntVar(&cfg.Floor, "floor", 0, "shortest prefix length the fold may reach (0 = family width - 8)")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newChunkCmd() *cobra.Command {
	var cfg modes.ChunkConfig
	var family string
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Split a prefix list into balanced worker files via a radix walk",
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			return modes.RunChunk(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.Input, "input", "", "CIDR list, one per line")
	cmd.Flags().StringVar(&cfg.OutputDir, "output-dir", "", "directory to write chunk-N.txt files into")
	cmd.Flags().IntVar(&cfg.NumChunks, "num-chunks", 0, "number of output chunks (0 = internal/concurrency's default worker count)")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output-dir")
	return cmd
}

func newTargetCmd() *cobra.Command {
	var cfg modes.TargetConfig
	var family string
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Synthesize random target addresses per input prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			return modes.RunTarget(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.Input, "input", "", "CIDR list, one per line")
	cmd.Flags().StringVar(&cfg.Output, "output", "", "output target list")
	cmd.Flags().IntVar(&cfg.PerPrefix, "per-prefix", 1, "number of targets to synthesize per prefix")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var cfg modes.MergeConfig
	cmd := &cobra.Command{
		Use:   "merge INPUTS...",
		Short: "Deduplicate a set of destination files via a scratch sqlite3 index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Inputs = args
			return modes.RunMerge(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.Output, "output", "", "deduplicated output file")
	cmd.Flags().StringVar(&cfg.ScratchDB, "scratch-db", "", "scratch sqlite3 path (default: output path + .scratch.sqlite3)")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newImperiledCmd() *cobra.Command {
	var cfg modes.ImperiledConfig
	var family string
	cmd := &cobra.Command{
		Use:   "imperiled INPUT...",
		Short: "Run the imperiled-destination analyzer standalone, without loop detection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			cfg.Inputs = args
			return modes.RunImperiled(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.ProjectPath, "project-path", "", "storage directory for the .imp files")
	cmd.Flags().StringVar(&cfg.RouterTest, "router-test", "", "routers.id-format file naming the persistent router set")
	cmd.Flags().StringVar(&cfg.BlocklistPrefixes, "blocklist-prefixes", "", "one CIDR per line to exclude")
	cmd.Flags().Uint8Var(&cfg.MinTTL, "min-ttl", 1, "lowest TTL to scan")
	cmd.Flags().Uint8Var(&cfg.MaxTTL, "max-ttl", 32, "highest TTL to scan")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "count but do not write .imp files")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("project-path")
	cmd.MarkFlagRequired("router-test")
	return cmd
}

// loggingScatterTarget is the CLI's default ScatterTarget: it has no real
// probing backend to call into, so it logs what it would have dispatched.
// A deployment with an actual probing fleet supplies its own ScatterTarget
// instead of going through the CLI's default.
type loggingScatterTarget struct {
	name string
	log  *zerolog.Logger
}

func (s *loggingScatterTarget) Scatter(targets []string) error {
	s.log.Info().Str("collaborator", s.name).Int("targets", len(targets)).Msg("scatter: would dispatch to external prober")
	return nil
}

func newScatterCmd() *cobra.Command {
	var cfg modes.ScatterConfig
	cmd := &cobra.Command{
		Use:   "scatter",
		Short: "Round-robin a target list across --fanout probing collaborators",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Fanout <= 0 {
				return fmt.Errorf("--fanout must be positive")
			}
			collaborators := make([]modes.ScatterTarget, cfg.Fanout)
			for i := range collaborators {
				collaborators[i] = &loggingScatterTarget{name: fmt.Sprintf("collaborator-%d", i), log: log}
			}
			return modes.RunScatter(cfg, collaborators, log)
		},
	}
	cmd.Flags().StringVar(&cfg.TargetList, "target-list", "", "flat target list, one per line")
	cmd.Flags().IntVar(&cfg.Fanout, "fanout", 1, "number of probing collaborators to round-robin across")
	cmd.MarkFlagRequired("target-list")
	return cmd
}

func newP50TargetCmd() *cobra.Command {
	var cfg modes.P50TargetConfig
	var family string
	cmd := &cobra.Command{
		Use:   "p50target",
		Short: "Pick one candidate destination per loop for a follow-up probing round",
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			return modes.RunP50Target(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.ProjectPath, "project-path", "", "a project directory built by `loops`")
	cmd.Flags().StringVar(&cfg.Output, "output", "", "output file, one loop_id,destination pair per line")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("project-path")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newP50AnalysisCmd() *cobra.Command {
	var cfg modes.P50AnalysisConfig
	cmd := &cobra.Command{
		Use:   "p50analysis",
		Short: "Report how many p50target destinations still reproduce a loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return modes.RunP50Analysis(cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.ProjectPath, "project-path", "", "the original project directory")
	cmd.Flags().StringVar(&cfg.FollowupInput, "followup-input", "", "the follow-up round's reproduced destination list")
	cmd.Flags().StringVar(&cfg.Output, "output", "", "output CSV file")
	cmd.MarkFlagRequired("project-path")
	cmd.MarkFlagRequired("followup-input")
	cmd.MarkFlagRequired("output")
	return cmd
}

// stdoutExportSink is the CLI's default ExportSink: a real deployment
// supplies its own (e.g. an Elasticsearch bulk client) in place of this one.
type stdoutExportSink struct{ log *zerolog.Logger }

func (s *stdoutExportSink) Export(rows []map[string]string) error {
	s.log.Info().Int("rows", len(rows)).Msg("export: would upload to external sink")
	for _, row := range rows {
		fmt.Println(row)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	var cfg modes.ExportConfig
	var family string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project's loop rows to an external sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			fam, err := parseFamily(family)
			if err != nil {
				return err
			}
			cfg.Family = fam
			return modes.RunExport(cfg, &stdoutExportSink{log: log}, log)
		},
	}
	cmd.Flags().StringVar(&cfg.ProjectPath, "project-path", "", "a project directory built by `loops`")
	cmd.Flags().StringVar(&family, "family", "ip4", "ip4 or ip6")
	cmd.MarkFlagRequired("project-path")
	return cmd
}
