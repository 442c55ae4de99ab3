package artifact

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/contracts"
)

func sampleBest() BestConfig {
	return BestConfig{
		Params: contracts.ExitParams{
			ScaleOutR:      contracts.F(1),
			ScaleOutFrac:   0.5,
			BETriggerR:     contracts.F(1),
			BEBackR:        0.1,
			TPR:            nil,
			TrailingStartR: contracts.F(1.5),
			TrailingGapR:   0.7,
		},
		Metrics: contracts.Metrics{
			AverageR:     0.42,
			ProfitFactor: math.Inf(1),
			WinRate:      1,
			MaxDrawdownR: 0,
			Trades:       12,
		},
		MonteCarlo: contracts.MaxDDPercentiles{P50: 1, P95: 2.5, P99: 3, Runs: 1500},
	}
}

func TestBestConfigWriteLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleBest().Write(&buf))

	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "Best Exit Parameters\n{\n"))
	assert.Contains(t, text, "\n\nMetrics (grid):\n{")
	assert.Contains(t, text, "\n\nMonte Carlo MaxDD (R):\n{")
	assert.Contains(t, text, `"tp_r": null`)
	assert.Contains(t, text, `"profit_factor": "inf"`)
}

func TestParseParamsRoundTrip(t *testing.T) {
	best := sampleBest()

	var buf bytes.Buffer
	require.NoError(t, best.Write(&buf))

	got, err := ParseParams(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, best.Params, got)
}

func TestParseParamsDefaultsForMissingKeys(t *testing.T) {
	got, err := ParseParams([]byte(`notes {"tp_r": 2, "scaleout_frac": null}`))
	require.NoError(t, err)

	require.NotNil(t, got.TPR)
	assert.Equal(t, 2.0, *got.TPR)
	assert.Nil(t, got.TrailingStartR)
	assert.Equal(t, 0.0, got.ScaleOutFrac)
	assert.Equal(t, 0.0, got.BEBackR)
	assert.Equal(t, contracts.DefaultTrailingGapR, got.TrailingGapR)
}

func TestParseParamsSkipsForeignBlocks(t *testing.T) {
	text := `Metrics (grid):
{"average_R": 1.2, "n_trades": 4}
broken {"tp_r": 
then {"trailing_start_r": 1.0, "trailing_gap_r": 0.5}`

	got, err := ParseParams([]byte(text))
	require.NoError(t, err)
	require.NotNil(t, got.TrailingStartR)
	assert.Equal(t, 1.0, *got.TrailingStartR)
	assert.Equal(t, 0.5, got.TrailingGapR)
}

func TestParseParamsNoBlock(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"no json":       "Best Exit Parameters\n",
		"empty object":  "{}",
		"foreign keys":  `{"average_R": 1}`,
		"truncated":     `{"tp_r": 2`,
		"not an object": `[1, 2, 3]`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseParams([]byte(text))
			assert.True(t, errors.Is(err, ErrNoParams))
		})
	}
}

func TestParseParamsRejectsOutOfRange(t *testing.T) {
	_, err := ParseParams([]byte(`{"tp_r": 2, "scaleout_frac": 1.5}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoParams))
}

func TestSaveAndLoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), BestConfigFile)
	require.NoError(t, sampleBest().Save(path))

	got, err := LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, sampleBest().Params, got)

	_, err = LoadParams(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
