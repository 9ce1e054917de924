package config

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/hjson/hjson-go/v4"
	"github.com/spf13/afero"

	"github.com/cunha/fbperf/logger"
	"github.com/cunha/fbperf/perf/temporal"
)

var Version string

const DefaultConfigPath = "./config.hjson"

var errReadingConfigFile = errors.New("encountered an error while reading the config file")

// fixedMinrttThresholdsMs and fixedHdratioThresholds are the menu SPEC_FULL.md
// §6 fixes: one opportunity and one degradation summarizer per threshold.
// They are not operator-configurable; the validator rejects any config that
// tries to change the set, and defaultConfig() is the only place that
// constructs it.
var (
	fixedMinrttThresholdsMs = []int16{5, 10, 20, 50}
	fixedHdratioThresholds  = []float32{0.05, 0.10, 0.20, 0.50, 0.75}
)

type (
	Config struct {
		Analyze           AnalyzeConfig           `json:"analyze" validate:"required"`
		AggregatePrefixes AggregatePrefixesConfig `json:"aggregate_prefixes" validate:"required"`
		Summarizers       SummarizerMenuConfig    `json:"summarizers" validate:"required"`
		Temporal          []TemporalConfig        `json:"temporal" validate:"required,gt=0,dive"`
	}

	// AnalyzeConfig carries the `analyze` subcommand's tunables (§6); the
	// input file list and --config path themselves are CLI-only and never
	// round-trip through the hjson document.
	AnalyzeConfig struct {
		BinDurationSecs    int64  `ch:"bin_duration_secs" json:"bin_duration_secs" validate:"gte=1"`
		Threads            int    `ch:"threads" json:"threads" validate:"gte=1"`
		PathIdDumpListFile string `ch:"pathid_dump_list_file" json:"pathid_dump_list_file"`
	}

	// AggregatePrefixesConfig carries the `aggregate-prefixes` subcommand's
	// tunables. The CLI's single --can-aggregate-frac-threshold flag
	// overrides CanAggregateFracThreshold (the HD-ratio side of the
	// equivalent-performance predicate, a fraction in [0,1]); MaxLat50DiffMs
	// (the MinRTT side, an absolute millisecond difference per
	// original_source/rust/src/bin/perfagg.rs's max_lat50_diff) has no CLI
	// flag of its own and is set from the config file only.
	AggregatePrefixesConfig struct {
		MaxLat50DiffMs            int32   `ch:"max_lat50_diff_ms" json:"max_lat50_diff_ms" validate:"gte=0"`
		CanAggregateFracThreshold float64 `ch:"can_aggregate_frac_threshold" json:"can_aggregate_frac_threshold" validate:"frac01"`
	}

	// SummarizerMenuConfig carries every shared tunable of the fixed
	// opportunity/degradation/relationship menu described in SPEC_FULL.md §6.
	// The per-threshold summarizer instances themselves are constructed by
	// the driver's Plan phase from MinrttThresholdsMs x HdratioThresholds;
	// this struct only holds the knobs common to every instance of a family.
	SummarizerMenuConfig struct {
		MinrttThresholdsMs          []int16   `ch:"minrtt_thresholds_ms" json:"minrtt_thresholds_ms" validate:"fixed_minrtt_menu"`
		HdratioThresholds           []float32 `ch:"hdratio_thresholds" json:"hdratio_thresholds" validate:"fixed_hdratio_menu"`
		MinrttBaselinePercentile    float64   `ch:"minrtt_baseline_percentile" json:"minrtt_baseline_percentile" validate:"frac01"`
		HdratioBaselinePercentile   float64   `ch:"hdratio_baseline_percentile" json:"hdratio_baseline_percentile" validate:"frac01"`
		MaxDiffCIHalfwidthMinrtt    float32   `ch:"max_diff_ci_halfwidth_minrtt_ms" json:"max_diff_ci_halfwidth_minrtt_ms" validate:"gte=0"`
		MaxDiffCIHalfwidthHdratio   float32   `ch:"max_diff_ci_halfwidth_hdratio" json:"max_diff_ci_halfwidth_hdratio" validate:"gte=0"`
		MaxBaselineHalfwidthMinrtt  float32   `ch:"max_baseline_halfwidth_minrtt_ms" json:"max_baseline_halfwidth_minrtt_ms" validate:"gte=0"`
		MaxBaselineHalfwidthHdratio float32   `ch:"max_baseline_halfwidth_hdratio" json:"max_baseline_halfwidth_hdratio" validate:"gte=0"`
		CompareLowerBound           bool      `ch:"compare_lower_bound" json:"compare_lower_bound"`
	}

	// TemporalConfig mirrors perf/temporal.TemporalConfig with validator
	// tags attached; ToTemporal converts one entry to the form the
	// classifier consumes. The driver reclassifies every DBSummary against
	// each entry of Config.Temporal in turn (§4.7's Work phase).
	TemporalConfig struct {
		BinDurationSecs              int64   `ch:"bin_duration_secs" json:"bin_duration_secs" validate:"gte=1"`
		MinDays                      int     `ch:"min_days" json:"min_days" validate:"gte=0"`
		MinFracExistingBins          float64 `ch:"min_frac_existing_bins" json:"min_frac_existing_bins" validate:"frac01"`
		MinFracBinsWithAlternate     float64 `ch:"min_frac_bins_with_alternate" json:"min_frac_bins_with_alternate" validate:"frac01"`
		MinFracValidBins             float64 `ch:"min_frac_valid_bins" json:"min_frac_valid_bins" validate:"frac01"`
		ContinuousMinFracShiftedBins float64 `ch:"continuous_min_frac_shifted_bins" json:"continuous_min_frac_shifted_bins" validate:"frac01"`
		DiurnalMinBadBins            int     `ch:"diurnal_min_bad_bins" json:"diurnal_min_bad_bins" validate:"gte=0"`
		DiurnalBadBinMinProbShift    float64 `ch:"diurnal_bad_bin_min_prob_shift" json:"diurnal_bad_bin_min_prob_shift" validate:"frac01"`
		UneventfulMaxFracShiftedBins float64 `ch:"uneventful_max_frac_shifted_bins" json:"uneventful_max_frac_shifted_bins" validate:"frac01"`
	}
)

// ToTemporal converts a validated TemporalConfig into the perf/temporal
// package's own type, which carries no validator tags of its own.
func (c TemporalConfig) ToTemporal() temporal.TemporalConfig {
	return temporal.TemporalConfig{
		BinDurationSecs:              c.BinDurationSecs,
		MinDays:                      c.MinDays,
		MinFracExistingBins:          c.MinFracExistingBins,
		MinFracBinsWithAlternate:     c.MinFracBinsWithAlternate,
		MinFracValidBins:             c.MinFracValidBins,
		ContinuousMinFracShiftedBins: c.ContinuousMinFracShiftedBins,
		DiurnalMinBadBins:            c.DiurnalMinBadBins,
		DiurnalBadBinMinProbShift:    c.DiurnalBadBinMinProbShift,
		UneventfulMaxFracShiftedBins: c.UneventfulMaxFracShiftedBins,
	}
}

// ReadFileConfig attempts to read the config file at the specified path and
// returns a config object, merging unspecified fields onto the default
// config.
func ReadFileConfig(afs afero.Fs, path string) (*Config, error) {
	contents, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("%w, located by default at '%s', please correct the issue in the config and try again:\n\t- %w", errReadingConfigFile, path, err)
	}
	return &cfg, nil
}

// ReadConfigFromMemory reads the config from bytes already read into memory,
// e.g. in tests.
func ReadConfigFromMemory(data []byte) (*Config, error) {
	var cfg Config
	if err := unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unmarshal unmarshals the hjson data into the config struct and validates
// the result.
func unmarshal(data []byte, cfg *Config) error {
	if err := hjson.Unmarshal(data, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON overrides the default unmarshalling method, seeding unset
// fields from the default config instead of from their zero values.
func (c *Config) UnmarshalJSON(bytes []byte) error {
	// temporary type avoids infinite recursion back into this method
	type tmpConfig Config
	tmpCfg := tmpConfig(GetDefaultConfig())

	if err := hjson.Unmarshal(bytes, &tmpCfg); err != nil {
		return err
	}

	*c = Config(tmpCfg)
	return nil
}

// GetDefaultConfig returns a Config object with default values.
func GetDefaultConfig() Config {
	if Version == "" {
		Version = "dev"
	}
	return defaultConfig()
}

// Reset resets the config values to default.
func (c *Config) Reset() error {
	*c = GetDefaultConfig()
	return c.Validate()
}

// Validate validates the config struct values.
func (c *Config) Validate() error {
	zlog := logger.GetLogger()
	zlog.Debug().Interface("config", c).Msg("validating config")

	validate, err := NewValidator()
	if err != nil {
		return err
	}
	return validate.Struct(c)
}

// NewValidator creates a new validator with the custom validation rules this
// package's struct tags reference.
func NewValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("frac01", func(fl validator.FieldLevel) bool {
		value := fl.Field().Float()
		return value >= 0 && value <= 1
	}); err != nil {
		return nil, err
	}

	if err := v.RegisterValidation("fixed_minrtt_menu", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().([]int16)
		if !ok {
			return false
		}
		return sameInt16Set(value, fixedMinrttThresholdsMs)
	}); err != nil {
		return nil, err
	}

	if err := v.RegisterValidation("fixed_hdratio_menu", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().([]float32)
		if !ok {
			return false
		}
		return sameFloat32Set(value, fixedHdratioThresholds)
	}); err != nil {
		return nil, err
	}

	return v, nil
}

func sameInt16Set(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]int16(nil), a...)
	sb := append([]int16(nil), b...)
	sort.Slice(sa, func(i, j int) bool { return sa[i] < sa[j] })
	sort.Slice(sb, func(i, j int) bool { return sb[i] < sb[j] })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sameFloat32Set(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]float32(nil), a...)
	sb := append([]float32(nil), b...)
	sort.Slice(sa, func(i, j int) bool { return sa[i] < sa[j] })
	sort.Slice(sb, func(i, j int) bool { return sb[i] < sb[j] })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// defaultConfig returns a copy of the default config object, with every
// numeric default SPEC_FULL.md §6 names.
func defaultConfig() Config {
	return Config{
		Analyze: AnalyzeConfig{
			BinDurationSecs:    900,
			Threads:            runtime.NumCPU(),
			PathIdDumpListFile: "",
		},
		AggregatePrefixes: AggregatePrefixesConfig{
			MaxLat50DiffMs:            5,
			CanAggregateFracThreshold: 0.1,
		},
		Summarizers: SummarizerMenuConfig{
			MinrttThresholdsMs:          append([]int16(nil), fixedMinrttThresholdsMs...),
			HdratioThresholds:           append([]float32(nil), fixedHdratioThresholds...),
			MinrttBaselinePercentile:    0.1,
			HdratioBaselinePercentile:   0.9,
			MaxDiffCIHalfwidthMinrtt:    5,
			MaxDiffCIHalfwidthHdratio:   0.1,
			MaxBaselineHalfwidthMinrtt:  5,
			MaxBaselineHalfwidthHdratio: 0.1,
			CompareLowerBound:           false,
		},
		Temporal: []TemporalConfig{
			{
				BinDurationSecs:              900,
				MinDays:                      7,
				MinFracExistingBins:          0.8,
				MinFracBinsWithAlternate:     0.8,
				MinFracValidBins:             0.5,
				ContinuousMinFracShiftedBins: 0.8,
				DiurnalMinBadBins:            1,
				DiurnalBadBinMinProbShift:    0.5,
				UneventfulMaxFracShiftedBins: 0.05,
			},
		},
	}
}
