package cmd

import (
	"errors"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/cunha/fbperf/config"
	"github.com/cunha/fbperf/util"
)

var ErrMissingConfigPath = errors.New("config path parameter is required")
var ErrTooManyArguments = errors.New("too many arguments provided")
var ErrMissingInputFiles = errors.New("at least one input file is required")
var ErrMissingOutdir = errors.New("--outdir is required")

func Commands() []*cli.Command {
	return []*cli.Command{
		AnalyzeCommand,
		AggregatePrefixesCommand,
	}
}

func ConfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Load configuration from `FILE`",
		Value:    config.DefaultConfigPath,
		Required: false,
		Action: func(_ *cli.Context, path string) error {
			return ValidateConfigPath(afero.NewOsFs(), path)
		},
	}
}

// ValidateConfigPath mirrors the teacher's config-flag validation: empty
// path is allowed (falls back to defaultConfig()), a non-empty path must
// exist and be readable.
func ValidateConfigPath(afs afero.Fs, configPath string) error {
	if configPath == "" {
		return nil
	}
	return util.ValidateFile(afs, configPath)
}

// LoadConfig reads the config at configPath, or returns the built-in default
// config when configPath is empty.
func LoadConfig(afs afero.Fs, configPath string) (*config.Config, error) {
	if configPath == "" {
		cfg := config.GetDefaultConfig()
		return &cfg, nil
	}
	return config.ReadFileConfig(afs, configPath)
}
