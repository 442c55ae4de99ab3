package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/pkg/logger"
)

const sampleReport = `Time,Position,Symbol,Type,Volume,Price,S / L,T / P,Time,Price,Commission,Swap,Profit
2024.03.04 10:00:00,1001,eurusd,Buy,0.10,1.1000,1.0950,1.1100,2024.03.04 14:30:00,1.1100,-0.20,0,100.00
2024.03.05 09:15,1002,GBPUSD,sell,0.20,1.2700,1.2750,,,,0,0,0
2024.03.05 09:15,1003,XAUUSD,balance,0,,,,,,0,0,0
bad-time,1004,EURUSD,buy,0.10,1.1000,1.0950,,,,0,0,0
2024.03.06 11:00:00,1005,EURUSD,buy,0.10,1.1000,,,,,0,0,0
`

func newReader() *Reader {
	return NewReader(Options{}, logger.Nop())
}

func TestReadParsesAndDropsRows(t *testing.T) {
	trades, stats, err := newReader().Read(strings.NewReader(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, Stats{Rows: 5, Kept: 2, Dropped: 3}, stats)
	require.Len(t, trades, 2)

	first := trades[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, "EURUSD", first.Symbol)
	assert.Equal(t, contracts.DirectionBuy, first.Direction)
	assert.InDelta(t, 1.1000, first.Entry, 1e-12)
	assert.InDelta(t, 1.0950, first.Stop, 1e-12)
	require.NotNil(t, first.TakeProfit)
	assert.InDelta(t, 1.1100, *first.TakeProfit, 1e-12)
	require.NotNil(t, first.CloseTime)
	assert.Equal(t, time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC), first.WindowEnd)

	second := trades[1]
	assert.Equal(t, contracts.DirectionSell, second.Direction)
	assert.Nil(t, second.TakeProfit)
	assert.Nil(t, second.CloseTime)
	open := time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC)
	assert.Equal(t, open, second.OpenTime)
	assert.Equal(t, open.Add(DefaultFallbackHorizon), second.WindowEnd)
}

func TestReadFallbackHorizon(t *testing.T) {
	r := NewReader(Options{FallbackHorizon: 6 * time.Hour}, logger.Nop())
	trades, _, err := r.Read(strings.NewReader(sampleReport))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, trades[1].OpenTime.Add(6*time.Hour), trades[1].WindowEnd)
}

func TestReadMissingColumn(t *testing.T) {
	in := "Time,Position,Symbol,Type,Volume,Price,T / P,Time,Price\n"
	_, _, err := newReader().Read(strings.NewReader(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "S / L")
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := newReader().ReadFile(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ReportHistory.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleReport), 0o644))

	trades, stats, err := newReader().ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
	assert.Equal(t, 3, stats.Dropped)
}

func TestDedupeHeader(t *testing.T) {
	got := DedupeHeader([]string{"\ufeffTime", "Price", "Time", "Price", " Time "})
	assert.Equal(t, []string{"Time", "Price", "Time.1", "Price.1", "Time.2"}, got)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.2345", 1.2345, true},
		{"1 234.5", 1234.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}
