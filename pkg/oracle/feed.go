package oracle

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Backoff bounds for feed reconnect attempts. The delay doubles on
// consecutive failures and snaps back to the initial value once a
// connection is established.
const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// nextReconnectDelay doubles the backoff, capped at maxReconnectDelay.
func nextReconnectDelay(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxReconnectDelay {
		next = maxReconnectDelay
	}
	return next
}

// StateChangeHandler is invoked for each pushed state change. Handlers run
// on the feed goroutine and must hand work off quickly.
type StateChangeHandler func(childID string)

// Feed subscribes to the oracle's stateChange push stream over WebSocket.
// Feed loss is non-fatal: the client keeps answering from cache and the
// feed reconnects with capped backoff.
type Feed struct {
	url     string
	handler StateChangeHandler
	logger  *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NewFeed creates a stateChange subscription. handler is called for every
// pushed child id.
func NewFeed(feedURL string, handler StateChangeHandler) *Feed {
	return &Feed{
		url:     feedURL,
		handler: handler,
		logger:  slog.Default().With("component", "oracle-feed"),
		done:    make(chan struct{}),
	}
}

// stateChangeMessage is the push wire shape.
type stateChangeMessage struct {
	Type    string `json:"type"`
	ChildID string `json:"child_id"`
}

// Start launches the subscription loop. Safe to call once.
func (f *Feed) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	go f.run(ctx)
}

// Stop terminates the subscription and waits for the loop to exit.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		f.mu.Lock()
		if f.cancel != nil {
			f.cancel()
		}
		f.mu.Unlock()
		<-f.done
	})
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	delay := initialReconnectDelay
	for {
		connected, err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			// A live session resets the backoff so a flap after hours of
			// uptime retries promptly instead of waiting out the cap.
			delay = initialReconnectDelay
		}
		if err != nil {
			f.logger.Warn("Oracle feed disconnected, reconnecting",
				"delay", delay, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay = nextReconnectDelay(delay)
	}
}

// connectAndRead dials the feed and processes messages until the connection
// drops or the context is cancelled. connected reports whether the dial
// succeeded, regardless of how the session ended.
func (f *Feed) connectAndRead(ctx context.Context) (connected bool, _ error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, f.url, nil)
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	f.logger.Info("Oracle feed connected", "url", f.url)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}

		var msg stateChangeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Warn("Invalid oracle feed message", "error", err)
			continue
		}
		if msg.Type != "state_change" || msg.ChildID == "" {
			continue
		}

		f.handler(msg.ChildID)
	}
}
