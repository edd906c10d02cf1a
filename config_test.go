// FILE: config_test.go

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadConfigFileDefaultsAndOverrides(t *testing.T) {
	cfg, err := ReadConfigFile(writeConfig(t, `{
		"period_time": 30000, // half-minute periods
		"trade_pairs": ["ETHBTC"],
		"save_pairs": ["LTCBTC", "ethbtc"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(30000), cfg.PeriodTime)
	assert.Equal(t, []string{"ethbtc"}, cfg.TradePairs)
	assert.Equal(t, []string{"ltcbtc", "ethbtc"}, cfg.SavePairs)

	// Untouched keys keep their defaults.
	assert.Equal(t, int64(100), cfg.ProcUpdateRes)
	assert.Equal(t, 16, cfg.NumDepthBins)
	assert.Equal(t, 0.75, cfg.BuyThreshold)
	assert.Equal(t, "data", cfg.DataStoreDir)
}

func TestReadConfigFileStripsLineComments(t *testing.T) {
	cfg, err := ReadConfigFile(writeConfig(t, `// full-line comment
{
	"num_depth_bins": 8 // trailing comment
}`))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.NumDepthBins)
}

func TestReadConfigFileValidation(t *testing.T) {
	_, err := ReadConfigFile(writeConfig(t, `{"period_time": 0}`))
	assert.Error(t, err)

	_, err = ReadConfigFile(writeConfig(t, `{"num_depth_bins": 1}`))
	assert.Error(t, err)

	_, err = ReadConfigFile(writeConfig(t, `{"trade_history_length": -1}`))
	assert.Error(t, err)

	_, err = ReadConfigFile(writeConfig(t, `not json`))
	assert.Error(t, err)
}

func TestReadConfigFileMissing(t *testing.T) {
	_, err := ReadConfigFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestStripLineComments(t *testing.T) {
	out := stripLineComments("a // one\n// whole line\nb\n")
	assert.Equal(t, "a b\n\n", out)
}
