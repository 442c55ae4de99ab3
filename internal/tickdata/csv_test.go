package tickdata

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/pkg/logger"
)

func writeMonth(t *testing.T, dir, symbol string, year int, month time.Month, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(MonthFile(dir, symbol, year, month), []byte(body), 0o644))
}

func TestMonthFile(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "Ticks_EURUSD_2024_03.csv"), MonthFile("data", "EURUSD", 2024, time.March))
}

func TestReadSortsAndDropsBadTimes(t *testing.T) {
	in := `time,bid,ask
2024-03-04 10:00:02,1.1002,1.1003
2024-03-04 10:00:00.500,1.1000,1.1001
garbage,1.2,1.2
2024-03-04 10:00:01,oops,1.1002
`
	ticks, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ticks, 3)

	assert.Equal(t, time.Date(2024, 3, 4, 10, 0, 0, 500e6, time.UTC), ticks[0].Time)
	assert.True(t, math.IsNaN(ticks[1].Bid))
	assert.InDelta(t, 1.1002, ticks[2].Bid, 1e-12)
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("time,bid\n2024-03-04 10:00:00,1.1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "ask")
}

func TestParseTimeEpochs(t *testing.T) {
	sec, ok := ParseTime("1709546400")
	require.True(t, ok)
	ms, ok := ParseTime("1709546400000")
	require.True(t, ok)
	assert.Equal(t, sec, ms)

	_, ok = ParseTime("")
	assert.False(t, ok)
}

func TestNewCSVSourceMissingRoot(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "missing"), logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCSVSourceWindowAcrossMonths(t *testing.T) {
	dir := t.TempDir()
	writeMonth(t, dir, "EURUSD", 2024, time.February, `time,bid,ask
2024-02-29 22:00:00,1.0800,1.0801
2024-02-29 23:30:00,1.0810,1.0811
`)
	writeMonth(t, dir, "EURUSD", 2024, time.March, `time,bid,ask
2024-03-01 00:30:00,1.0820,1.0821
2024-03-01 02:00:00,1.0830,1.0831
2024-03-01 05:00:00,1.0840,1.0841
`)

	src, err := NewCSVSource(dir, logger.Nop())
	require.NoError(t, err)

	from := time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	ticks, err := src.Ticks(context.Background(), "EURUSD", from, to)
	require.NoError(t, err)
	require.Len(t, ticks, 3)
	assert.InDelta(t, 1.0810, ticks[0].Bid, 1e-12)
	assert.Equal(t, to, ticks[2].Time, "window end is inclusive")

	// served from cache after the file disappears
	require.NoError(t, os.Remove(MonthFile(dir, "EURUSD", 2024, time.March)))
	again, err := src.Ticks(context.Background(), "EURUSD", from, to)
	require.NoError(t, err)
	assert.Equal(t, ticks, again)
}

func TestCSVSourceMissingMonthIsEmpty(t *testing.T) {
	src, err := NewCSVSource(t.TempDir(), logger.Nop())
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ticks, err := src.Ticks(context.Background(), "GBPUSD", from, from.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestCSVSourceBrokenFileIsError(t *testing.T) {
	dir := t.TempDir()
	writeMonth(t, dir, "EURUSD", 2024, time.March, "timestamp,bid,ask\n")

	src, err := NewCSVSource(dir, logger.Nop())
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = src.Ticks(context.Background(), "EURUSD", from, from.Add(time.Hour))
	require.ErrorIs(t, err, ErrMissingColumn)
}
