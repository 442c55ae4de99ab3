package artifact

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/contracts"
)

func TestWriteResults(t *testing.T) {
	results := []contracts.GridResult{
		{
			Index:         3,
			Params:        contracts.ExitParams{TPR: contracts.F(2), TrailingGapR: 0.7},
			Trades:        4,
			Skipped:       1,
			Metrics:       contracts.Metrics{AverageR: 0.5, ProfitFactor: math.Inf(1), WinRate: 0.75, MaxDrawdownR: 1, Trades: 4},
			ReasonsSample: []contracts.ExitReason{contracts.ExitReasonTakeProfit, contracts.ExitReasonStopLoss},
		},
		{
			Index:    4,
			Params:   contracts.ExitParams{TrailingStartR: contracts.F(1), TrailingGapR: 0.5},
			Unusable: 2,
			Metrics:  contracts.UndefinedMetrics(),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, ResultColumns, rows[0])
	assert.Equal(t, []string{"", "0", "", "0", "2", "", "0.7", "4", "1", "0", "0.5", "inf", "0.75", "1", "tp_direct;sl"}, rows[1])
	assert.Equal(t, []string{"", "0", "", "0", "", "1", "0.5", "0", "0", "2", "", "", "", "", ""}, rows[2])
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "", FormatFloat(math.NaN()))
	assert.Equal(t, "inf", FormatFloat(math.Inf(1)))
	assert.Equal(t, "-inf", FormatFloat(math.Inf(-1)))
	assert.Equal(t, "0.3333333333333333", FormatFloat(1.0/3))
}
