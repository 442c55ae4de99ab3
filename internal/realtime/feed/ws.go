package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wonny/exitlab/internal/observability"
	"github.com/wonny/exitlab/internal/realtime"
	"github.com/wonny/exitlab/internal/realtime/cache"
	"github.com/wonny/exitlab/pkg/config"
	"github.com/wonny/exitlab/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	tickBuffer = 1024
)

// subscribeMessage is sent after every (re)connect
type subscribeMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// quoteMessage is one quote pushed by the feed server
type quoteMessage struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Client streams live quotes from a websocket feed and reconnects with
// exponential backoff when the connection drops
// ⭐ SSOT: 실시간 호가 웹소켓 연결은 이 클라이언트에서만
type Client struct {
	cfg     config.FeedConfig
	cache   *cache.PriceCache
	metrics *observability.Metrics
	logger  *logger.Logger

	dialer  *websocket.Dialer
	limiter *rate.Limiter

	conn   *websocket.Conn
	connMu sync.Mutex

	symbols   map[string]bool
	symbolsMu sync.RWMutex

	out      chan realtime.PriceTick
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	now      func() time.Time
}

// NewClient creates a feed client; priceCache and metrics may be nil
func NewClient(cfg config.FeedConfig, priceCache *cache.PriceCache, metrics *observability.Metrics, log *logger.Logger) *Client {
	if cfg.ReconnectEvery <= 0 {
		cfg.ReconnectEvery = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.ReconnectEvery {
		cfg.MaxBackoff = cfg.ReconnectEvery
	}
	return &Client{
		cfg:     cfg,
		cache:   priceCache,
		metrics: metrics,
		logger:  log.Component("feed"),
		dialer:  websocket.DefaultDialer,
		limiter: rate.NewLimiter(rate.Every(cfg.ReconnectEvery), 1),
		symbols: make(map[string]bool),
		out:     make(chan realtime.PriceTick, tickBuffer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		now:     time.Now,
	}
}

// Ticks delivers valid quotes; it is closed when the client stops
func (c *Client) Ticks() <-chan realtime.PriceTick {
	return c.out
}

// Start connects and begins streaming
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errors.New("feed url is not configured")
	}

	c.logger.WithField("url", c.cfg.URL).Info("Starting feed client")

	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	c.started.Store(true)
	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	return nil
}

// Stop closes the connection and waits for the read loop to exit
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping feed client")
		close(c.stopCh)
		c.closeConn()
	})
	if c.started.Load() {
		<-c.doneCh
	}
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

// Subscribe adds symbols and sends the full subscription when connected
func (c *Client) Subscribe(symbols ...string) error {
	c.symbolsMu.Lock()
	for _, s := range symbols {
		c.symbols[s] = true
	}
	c.symbolsMu.Unlock()

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.sendSubscription()
}

// Symbols returns the subscribed symbols in order
func (c *Client) Symbols() []string {
	c.symbolsMu.RLock()
	defer c.symbolsMu.RUnlock()

	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// connect dials the feed and replays the subscription
func (c *Client) connect(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.conn = conn
	if err := c.sendSubscription(); err != nil {
		conn.Close()
		c.conn = nil
		return fmt.Errorf("subscribe failed: %w", err)
	}

	c.logger.Info("Connected to feed")
	return nil
}

// sendSubscription must be called with connMu held
func (c *Client) sendSubscription() error {
	symbols := c.Symbols()
	if len(symbols) == 0 {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(subscribeMessage{Action: "subscribe", Symbols: symbols})
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.doneCh)
	defer close(c.out)
	defer c.closeConn()

	for {
		if c.stopped(ctx) {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(ctx) {
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.stopped(ctx) {
				return
			}
			c.logger.WithError(err).Warn("Feed read failed")
			c.connMu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		if err := c.handleMessage(message); err != nil {
			c.logger.WithError(err).Warn("Failed to handle feed message")
		}
	}
}

// reconnect retries with exponential backoff until connected; false when stopped
func (c *Client) reconnect(ctx context.Context) bool {
	delay := c.cfg.ReconnectEvery
	for {
		err := c.connect(ctx)
		if err == nil {
			c.metrics.IncFeedReconnect()
			c.logger.Info("Reconnected to feed")
			return true
		}
		if c.stopped(ctx) {
			return false
		}

		c.logger.WithError(err).WithField("delay", delay.String()).Warn("Reconnect failed, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-c.stopCh:
			return false
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.closeConn()
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()

			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.logger.WithError(err).Warn("Failed to send ping")
			}
		}
	}
}

// handleMessage accepts a single quote or an array of quotes
func (c *Client) handleMessage(message []byte) error {
	var quotes []quoteMessage
	trimmed := bytes.TrimSpace(message)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &quotes); err != nil {
			return fmt.Errorf("unmarshal quotes: %w", err)
		}
	} else {
		var q quoteMessage
		if err := json.Unmarshal(trimmed, &q); err != nil {
			return fmt.Errorf("unmarshal quote: %w", err)
		}
		quotes = append(quotes, q)
	}

	for _, q := range quotes {
		tick := realtime.PriceTick{
			Symbol:    q.Symbol,
			Bid:       q.Bid,
			Ask:       q.Ask,
			Timestamp: q.Time,
			Source:    string(realtime.SourceWebSocket),
		}
		if tick.Timestamp.IsZero() {
			tick.Timestamp = c.now()
		}
		if !tick.Valid() {
			continue
		}
		if c.cache != nil {
			c.cache.Update(tick)
		}
		c.metrics.ObservePrice(tick.Symbol)

		select {
		case c.out <- tick:
		default:
			c.logger.WithField("symbol", tick.Symbol).Debug("Tick buffer full, quote dropped")
		}
	}
	return nil
}

func (c *Client) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
