package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/cunha/fbperf/config"
	"github.com/cunha/fbperf/driver"
	"github.com/cunha/fbperf/logger"
	"github.com/cunha/fbperf/perf"
	"github.com/cunha/fbperf/util"
)

var AnalyzeCommand = &cli.Command{
	Name:      "analyze",
	Usage:     "summarize path performance telemetry into the fixed opportunity/degradation/relationship report set",
	UsageText: "fbperf analyze <input-files...> --outdir DIR [--bin-duration-secs 900] [--threads N] [--pathid-dump-list-file PATH] [--config PATH]",
	Args:      true,
	Flags: []cli.Flag{
		ConfigFlag(),
		&cli.StringFlag{
			Name:     "outdir",
			Usage:    "directory receiving one subdirectory per (temporal config, summarizer)",
			Required: true,
		},
		&cli.Int64Flag{
			Name:  "bin-duration-secs",
			Usage: "time-bucket width in seconds; overrides the config file's analyze.bin_duration_secs",
		},
		&cli.IntFlag{
			Name:  "threads",
			Usage: "summarizer worker count; overrides the config file's analyze.threads",
		},
		&cli.StringFlag{
			Name:  "pathid-dump-list-file",
			Usage: "file of BGP prefixes (one per line) to additionally dump as per-bin time series",
		},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() == 0 {
			return ErrMissingInputFiles
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
		if cCtx.IsSet("bin-duration-secs") {
			cfg.Analyze.BinDurationSecs = cCtx.Int64("bin-duration-secs")
		}
		if cCtx.IsSet("threads") {
			cfg.Analyze.Threads = cCtx.Int("threads")
		}
		if cCtx.IsSet("pathid-dump-list-file") {
			cfg.Analyze.PathIdDumpListFile = cCtx.String("pathid-dump-list-file")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		inputFiles := cCtx.Args().Slice()
		for _, path := range inputFiles {
			if err := util.ValidateFile(afs, path); err != nil {
				return fmt.Errorf("input file %s: %w", path, err)
			}
		}

		return RunAnalyzeCommand(cCtx.Context, afs, inputFiles, outdir, cfg)
	},
}

// RunAnalyzeCommand loads every input file into one DB, then runs the
// driver's Plan/Work phases over it.
func RunAnalyzeCommand(ctx context.Context, afs afero.Fs, inputFiles []string, outdir string, cfg *config.Config) error {
	log := logger.GetLogger()

	db, err := driver.Load(ctx, afs, inputFiles, cfg.Analyze.BinDurationSecs)
	if err != nil {
		return fmt.Errorf("loading input files: %w", err)
	}

	var dumpPathIds []*perf.PathId
	if cfg.Analyze.PathIdDumpListFile != "" {
		dumpPathIds, err = loadPathIdDumpList(afs, cfg.Analyze.PathIdDumpListFile, db)
		if err != nil {
			return fmt.Errorf("loading pathid dump list: %w", err)
		}
		log.Info().Int("count", len(dumpPathIds)).Msg("matched paths for per-bin time series dump")
	}

	if err := driver.Run(ctx, afs, db, cfg, outdir, dumpPathIds, inputFiles); err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}
	return nil
}

// loadPathIdDumpList reads one BGP prefix per line and returns every
// interned *perf.PathId in db whose BgpPrefix matches.
func loadPathIdDumpList(afs afero.Fs, path string, db *perf.DB) ([]*perf.PathId, error) {
	file, err := afs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	wanted := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		wanted[line] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}

	var matched []*perf.PathId
	for _, pid := range db.Paths() {
		if wanted[pid.BgpPrefix.ToString()] {
			matched = append(matched, pid)
		}
	}
	return matched, nil
}
