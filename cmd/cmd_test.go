package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigPathEmptyIsAllowed(t *testing.T) {
	require.NoError(t, ValidateConfigPath(afero.NewMemMapFs(), ""))
}

func TestValidateConfigPathMissingFileErrors(t *testing.T) {
	require.Error(t, ValidateConfigPath(afero.NewMemMapFs(), "/nonexistent.hjson"))
}

func TestLoadConfigEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := LoadConfig(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	require.Equal(t, int64(900), cfg.Analyze.BinDurationSecs)
}

func TestLoadConfigReadsFile(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/config.hjson", []byte(`{analyze: {bin_duration_secs: 1800}}`), 0o644))

	cfg, err := LoadConfig(afs, "/config.hjson")
	require.NoError(t, err)
	require.Equal(t, int64(1800), cfg.Analyze.BinDurationSecs)
}
