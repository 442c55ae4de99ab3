package live

import (
	"context"
	"fmt"
	"io"

	"github.com/wonny/exitlab/pkg/httputil"
	"github.com/wonny/exitlab/pkg/logger"
)

// WebhookSink posts every adjustment as JSON to a terminal bridge that owns
// the actual order modification
type WebhookSink struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewWebhookSink creates a sink posting to url
func NewWebhookSink(client *httputil.Client, url string, log *logger.Logger) *WebhookSink {
	return &WebhookSink{
		client: client,
		url:    url,
		logger: log.Component("webhook"),
	}
}

// Apply posts adj; any non-2xx answer is an error
func (s *WebhookSink) Apply(ctx context.Context, adj Adjustment) error {
	resp, err := s.client.PostJSON(ctx, s.url, adj)
	if err != nil {
		return fmt.Errorf("post adjustment %s: %w", adj.ID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post adjustment %s: bridge answered %s", adj.ID, resp.Status)
	}

	s.logger.WithFields(map[string]interface{}{
		"adjustment_id": adj.ID,
		"position_id":   adj.PositionID,
		"kinds":         adj.Kinds,
	}).Debug("Adjustment delivered")
	return nil
}
