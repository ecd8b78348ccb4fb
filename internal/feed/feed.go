// Package feed implements the websocket client for the recorder's
// speaker-activity feed.
//
// The recorder watches the meeting client's UI and pushes a JSON frame each
// time the set of active speakers changes. The client collects these frames
// into the ordered activity log the diarizer consumes. Out-of-order frames
// (clock skew, reconnect replays) are dropped with a warning rather than
// corrupting the log.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// Client connects to a recorder's activity feed and collects activity events.
type Client struct {
	url     string
	token   string
	logger  *slog.Logger
	metrics *observe.Metrics
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithToken sets a Bearer token sent on the websocket handshake.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates a feed client for the websocket endpoint at url
// (e.g. "ws://recorder:9090/activity").
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Collect connects to the feed and reads activity events until the server
// closes the connection or ctx is cancelled. A normal server close returns
// the collected events and a nil error; cancellation returns the events
// collected so far alongside ctx.Err().
func (c *Client) Collect(ctx context.Context) ([]types.ActivityEvent, error) {
	events := []types.ActivityEvent{}
	err := c.Stream(ctx, func(ev types.ActivityEvent) {
		events = append(events, ev)
	})
	return events, err
}

// Stream connects to the feed and invokes sink for every well-formed,
// in-order activity event until the server closes the connection or ctx is
// cancelled. sink is called from a single goroutine.
func (c *Client) Stream(ctx context.Context, sink func(types.ActivityEvent)) error {
	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{
			"Authorization": []string{"Bearer " + c.token},
		}
	}

	conn, _, err := websocket.Dial(ctx, c.url, opts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("feed: dial %q: %v: %w", c.url, err, types.ErrProviderUnavailable)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	c.logger.Info("feed: connected", "url", c.url)

	var last types.ActivityEvent
	haveLast := false
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("feed: read: %v: %w", err, types.ErrProviderUnavailable)
		}

		var ev types.ActivityEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("feed: malformed frame dropped", "err", err)
			continue
		}
		if ev.At.IsZero() {
			c.logger.Warn("feed: frame without timestamp dropped")
			continue
		}
		if haveLast && ev.At.Before(last.At) {
			c.logger.Warn("feed: out-of-order frame dropped",
				"at", ev.At, "last", last.At)
			continue
		}

		last = ev
		haveLast = true
		if c.metrics != nil {
			c.metrics.RecordActivityEvent(ctx)
		}
		sink(ev)
	}
}
