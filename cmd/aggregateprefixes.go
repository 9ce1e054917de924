package cmd

import (
	"fmt"
	"net/netip"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/cunha/fbperf/config"
	"github.com/cunha/fbperf/logger"
	"github.com/cunha/fbperf/prefixagg"
	"github.com/cunha/fbperf/util"
)

var AggregatePrefixesCommand = &cli.Command{
	Name:      "aggregate-prefixes",
	Usage:     "coalesce sibling prefixes whose recorded performance is equivalent",
	UsageText: "fbperf aggregate-prefixes <input-csv> --outdir DIR --can-aggregate-frac-threshold FLOAT",
	Args:      true,
	Flags: []cli.Flag{
		ConfigFlag(),
		&cli.StringFlag{
			Name:     "outdir",
			Usage:    "directory receiving prefix-aggregation.csv",
			Required: true,
		},
		&cli.Float64Flag{
			Name:  "can-aggregate-frac-threshold",
			Usage: "max allowed HD-ratio fractional difference between merge candidates; overrides the config file's aggregate_prefixes.can_aggregate_frac_threshold",
		},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() != 1 {
			if cCtx.NArg() == 0 {
				return ErrMissingInputFiles
			}
			return ErrTooManyArguments
		}
		outdir := cCtx.String("outdir")
		if outdir == "" {
			return ErrMissingOutdir
		}

		afs := afero.NewOsFs()
		cfg, err := LoadConfig(afs, cCtx.String("config"))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cCtx.IsSet("can-aggregate-frac-threshold") {
			cfg.AggregatePrefixes.CanAggregateFracThreshold = cCtx.Float64("can-aggregate-frac-threshold")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		inputCSV := cCtx.Args().First()
		if err := util.ValidateFile(afs, inputCSV); err != nil {
			return fmt.Errorf("input file %s: %w", inputCSV, err)
		}

		return RunAggregatePrefixesCommand(afs, inputCSV, outdir, cfg)
	},
}

// RunAggregatePrefixesCommand loads the input CSV, coalesces prefixes whose
// recorded performance never diverges by more than cfg's thresholds, and
// writes prefix-aggregation.csv under outdir.
func RunAggregatePrefixesCommand(afs afero.Fs, inputCSV, outdir string, cfg *config.Config) error {
	log := logger.GetLogger()

	in, err := afs.Open(inputCSV)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputCSV, err)
	}
	defer in.Close()

	prefix2data, err := prefixagg.LoadInput(in)
	if err != nil {
		return fmt.Errorf("loading %s: %w", inputCSV, err)
	}
	log.Info().Int("prefixes", len(prefix2data)).Msg("loaded prefix performance records")

	maxLat50Diff := cfg.AggregatePrefixes.MaxLat50DiffMs
	maxHdRatioDiff := cfg.AggregatePrefixes.CanAggregateFracThreshold

	start := make(map[netip.Prefix]struct{}, len(prefix2data))
	for p := range prefix2data {
		start[p] = struct{}{}
	}

	canAggregate := func(a, b netip.Prefix) bool {
		return prefixagg.ComparePrefixes(a, b, prefix2data, maxLat50Diff, maxHdRatioDiff)
	}
	aggregated := prefixagg.AggregatePrefixes(start, canAggregate)

	if err := afs.MkdirAll(outdir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outdir, err)
	}
	outPath := filepath.Join(outdir, "prefix-aggregation.csv")
	out, err := afs.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	if err := prefixagg.DumpOutput(out, prefix2data, aggregated); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	log.Info().Str("path", outPath).Msg("wrote prefix aggregation report")
	return nil
}
