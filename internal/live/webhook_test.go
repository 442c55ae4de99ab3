package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/pkg/httputil"
	"github.com/wonny/exitlab/pkg/logger"
)

func TestWebhookSink(t *testing.T) {
	var got Adjustment
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewWebhookSink(httputil.New(logger.Nop()).DisableRetry(), server.URL, logger.Nop())
	adj := Adjustment{
		ID:         "adj-1",
		PositionID: "p-1",
		Symbol:     "EURUSD",
		Kinds:      []AdjustmentKind{AdjustBreakeven},
		Stop:       contracts.F(1.1),
		Price:      1.1042,
		At:         time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, sink.Apply(context.Background(), adj))
	assert.Equal(t, adj.ID, got.ID)
	assert.Equal(t, adj.Kinds, got.Kinds)
	require.NotNil(t, got.Stop)
	assert.Equal(t, 1.1, *got.Stop)
	assert.True(t, adj.At.Equal(got.At))
}

func TestWebhookSinkRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := NewWebhookSink(httputil.New(logger.Nop()).DisableRetry(), server.URL, logger.Nop())
	err := sink.Apply(context.Background(), Adjustment{ID: "adj-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
