// Package driver runs the parallel load/plan/work pipeline described in
// SPEC_FULL.md §4.7: load every input file into one shared DB, construct the
// fixed summarizer menu, then fan out one task per summarizer that builds a
// DBSummary and dumps it under every configured TemporalConfig.
package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cunha/fbperf/config"
	"github.com/cunha/fbperf/ingest"
	"github.com/cunha/fbperf/logger"
	"github.com/cunha/fbperf/perf"
	"github.com/cunha/fbperf/perf/aggregate"
	"github.com/cunha/fbperf/perf/summarize"
)

// builder is implemented by summarizers that need a pass over the whole DB
// before they can answer Summarize/GetRoutes (the degradation family's
// baseline computation).
type builder interface {
	Build(db *perf.DB)
}

// Load reads every input file into one shared DB. Each file is parsed
// concurrently into its own DB, which is then merged into the shared DB
// under dbMu, since perf.DB carries no internal synchronization of its own —
// it is built once, then treated as read-only for the rest of the run. A bin
// that collides with one already merged from another file is counted as a
// repeated-timebin error and dropped. This follows database/writer.go's
// mutex-guarded shared-state pattern, adapted here from batched ClickHouse
// sends to serialized in-memory merges.
func Load(ctx context.Context, afs afero.Fs, inputFiles []string, binDurationSecs int64) (*perf.DB, error) {
	log := logger.GetLogger()
	start := time.Now()

	db := perf.NewDB(binDurationSecs)
	var dbMu sync.Mutex

	progress := mpb.New(mpb.WithWidth(64))
	bar := progress.New(int64(len(inputFiles)),
		mpb.BarStyle().Lbound("╢").Filler("▌").Tip("▌").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name("Loading", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO), "done"),
		),
		mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
	)

	group, gctx := errgroup.WithContext(ctx)
	for _, path := range inputFiles {
		path := path
		group.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			local := perf.NewDB(binDurationSecs)
			err := ingest.LoadFile(afs, path, local)
			dbMu.Lock()
			db.Rows += local.Rows
			for kind, n := range local.ErrorCounts {
				db.ErrorCounts[kind] += n
			}
			for _, pid := range local.Paths() {
				info := local.PathInfo(pid)
				for _, t := range info.SortedTimes() {
					if _, ierr := db.Insert(*pid, info.Get(t)); ierr != nil {
						db.RecordError(perf.ClassifyParseError(ierr))
						db.Rows--
					}
				}
			}
			dbMu.Unlock()
			bar.Increment()
			if err != nil {
				log.Error().Str("path", path).Err(err).Msg("failed to load input file")
				return fmt.Errorf("loading %s: %w", path, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	progress.Wait()

	printLoadSummary(db, time.Since(start))
	return db, nil
}

// printLoadSummary prints the thousands-separated load report SPEC_FULL.md
// §7 requires: rows, paths, seconds, bins, bytes, and the parse-error
// histogram.
func printLoadSummary(db *perf.DB, elapsed time.Duration) {
	p := message.NewPrinter(language.English)
	log := logger.GetLogger()
	log.Info().Msg(p.Sprintf(
		"loaded %d rows into %d paths (%d total bins, %d bytes) in %s",
		db.Rows, len(db.Paths()), db.TotalBins(), db.TotalTraffic, elapsed.Round(time.Millisecond),
	))
	kinds := make([]string, 0, len(db.ErrorCounts))
	for kind := range db.ErrorCounts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		log.Info().Msg(p.Sprintf("  %s: %d", kind, db.ErrorCounts[perf.ErrorKind(kind)]))
	}
}

// Plan constructs the fixed summarizer menu (SPEC_FULL.md §6): one
// opportunity and one degradation summarizer per configured MinRTT and
// HD-ratio threshold, plus the four peer-type relationship summarizers.
// Degradation summarizers are returned un-Built; Run calls Build on each one
// against the loaded DB inside that summarizer's own task.
func Plan(cfg *config.Config) []summarize.Summarizer {
	sc := cfg.Summarizers
	var plan []summarize.Summarizer

	for _, threshold := range sc.MinrttThresholdsMs {
		plan = append(plan,
			&summarize.MinRtt50{
				MinImprovMs:        threshold,
				MaxDiffCIHalfwidth: sc.MaxDiffCIHalfwidthMinrtt,
				CompareLowerBound:  sc.CompareLowerBound,
			},
			&summarize.DegradationMinRtt{
				BaselinePercentile:   sc.MinrttBaselinePercentile,
				MaxBaselineHalfwidth: sc.MaxBaselineHalfwidthMinrtt,
				MinImprovMs:          threshold,
				MaxDiffCIHalfwidth:   sc.MaxDiffCIHalfwidthMinrtt,
				CompareLowerBound:    sc.CompareLowerBound,
			},
		)
	}

	for _, threshold := range sc.HdratioThresholds {
		plan = append(plan,
			&summarize.HdRatio50{
				MinImprov:          threshold,
				MaxDiffCIHalfwidth: sc.MaxDiffCIHalfwidthHdratio,
				CompareLowerBound:  sc.CompareLowerBound,
			},
			&summarize.DegradationHdRatio{
				BaselinePercentile:   sc.HdratioBaselinePercentile,
				MaxBaselineHalfwidth: sc.MaxBaselineHalfwidthHdratio,
				MinImprov:            threshold,
				MaxDiffCIHalfwidth:   sc.MaxDiffCIHalfwidthHdratio,
				CompareLowerBound:    sc.CompareLowerBound,
			},
		)
	}

	peering := summarize.NewPeerTypeMask(perf.PeeringPrivate, perf.PeeringPublic, perf.PeeringPaid)
	public := summarize.NewPeerTypeMask(perf.PeeringPublic)
	privatePaid := summarize.NewPeerTypeMask(perf.PeeringPrivate, perf.PeeringPaid)
	transit := summarize.NewPeerTypeMask(perf.Transit)

	// The relationship family has no entry in the fixed threshold menu
	// (§6); the smallest configured MinRTT/HD-ratio thresholds stand in as
	// its shift-detection bar, consistent with every other summarizer using
	// menu-derived thresholds rather than inventing independent ones.
	minImprovMs := sc.MinrttThresholdsMs[0]
	minImprovHd := sc.HdratioThresholds[0]

	for _, pair := range []struct{ primary, alternate summarize.PeerTypeMask }{
		{peering, transit},
		{public, privatePaid},
		{privatePaid, public},
		{transit, transit},
	} {
		plan = append(plan,
			&summarize.RelationshipMinRtt{
				PrimaryMask:        pair.primary,
				AlternateMask:      pair.alternate,
				MinImprovMs:        minImprovMs,
				MaxDiffCIHalfwidth: sc.MaxDiffCIHalfwidthMinrtt,
				CompareLowerBound:  sc.CompareLowerBound,
			},
			&summarize.RelationshipHdRatio{
				PrimaryMask:        pair.primary,
				AlternateMask:      pair.alternate,
				MinImprov:          minImprovHd,
				MaxDiffCIHalfwidth: sc.MaxDiffCIHalfwidthHdratio,
				CompareLowerBound:  sc.CompareLowerBound,
			},
		)
	}

	return plan
}

// Run executes the Work phase: one errgroup task per summarizer, each
// building a DBSummary under cfg.Temporal[0], dumping it, then reclassifying
// and dumping again for every remaining TemporalConfig — without replaying
// the underlying bin stream, per aggregate.DBSummary.Reclassify. It also
// writes the top-level run-manifest.txt.
func Run(ctx context.Context, afs afero.Fs, db *perf.DB, cfg *config.Config, outdir string, pathIDs []*perf.PathId, inputFiles []string) error {
	if len(cfg.Temporal) == 0 {
		return fmt.Errorf("driver: at least one temporal config is required")
	}
	if err := writeManifest(afs, outdir, inputFiles); err != nil {
		return err
	}

	plan := Plan(cfg)
	log := logger.GetLogger()

	progress := mpb.New(mpb.WithWidth(64))
	bar := progress.New(int64(len(plan)),
		mpb.BarStyle().Lbound("╢").Filler("▌").Tip("▌").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name("Summarizing", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO), "done"),
		),
		mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
	)

	group, gctx := errgroup.WithContext(ctx)
	if cfg.Analyze.Threads > 0 {
		group.SetLimit(cfg.Analyze.Threads)
	}
	for _, summarizer := range plan {
		summarizer := summarizer
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("driver: summarizer %s panicked: %v", summarizer.Prefix(), r)
				}
			}()
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if b, ok := summarizer.(builder); ok {
				b.Build(db)
			}

			firstCfg := cfg.Temporal[0]
			dbsum, err := aggregate.Build(db, summarizer, firstCfg.ToTemporal())
			if err != nil {
				return fmt.Errorf("building summary for %s: %w", summarizer.Prefix(), err)
			}
			dir := filepath.Join(outdir, firstCfg.ToTemporal().Prefix(), summarizer.Prefix())
			log.Info().Str("dir", dir).Msg("writing summarizer output")
			if err := dbsum.Dump(afs, dir, pathIDs); err != nil {
				log.Error().Str("dir", dir).Err(err).Msg("dump failed")
			}

			for _, tempCfg := range cfg.Temporal[1:] {
				tc := tempCfg.ToTemporal()
				dbsum.Reclassify(db.TotalBins(), tc)
				dir := filepath.Join(outdir, tc.Prefix(), summarizer.Prefix())
				log.Info().Str("dir", dir).Msg("writing summarizer output")
				if err := dbsum.Dump(afs, dir, pathIDs); err != nil {
					log.Error().Str("dir", dir).Err(err).Msg("dump failed")
				}
			}
			bar.Increment()
			return nil
		})
	}
	err := group.Wait()
	progress.Wait()
	return err
}

func writeManifest(afs afero.Fs, outdir string, inputFiles []string) error {
	if err := afs.MkdirAll(outdir, 0o755); err != nil {
		return fmt.Errorf("driver: creating %s: %w", outdir, err)
	}
	runID := uuid.New()
	file, err := afs.Create(filepath.Join(outdir, "run-manifest.txt"))
	if err != nil {
		return fmt.Errorf("driver: creating run-manifest.txt: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "run_id: %s\n", runID)
	fmt.Fprintf(file, "start_time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(file, "input_files:\n")
	for _, f := range inputFiles {
		fmt.Fprintf(file, "  - %s\n", f)
	}
	return nil
}
