// Package realtime subscribes to the store's change feed and turns change
// events into category invalidations.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ChangeEvent is one row-level change announced by the store
type ChangeEvent struct {
	Table  string `json:"table"`
	ID     string `json:"id"`
	Action string `json:"action"`
}

// tableCategories maps store tables to invalidation categories
var tableCategories = map[string]string{
	"pilots":               "pilot",
	"certification_checks": "check",
	"compliance_records":   "compliance",
}

// InvalidateFunc receives the category (and entity id, possibly empty) of
// each change event
type InvalidateFunc func(category, id string)

// Listener owns a single WebSocket connection to the change feed and
// reconnects at a fixed interval after failures
type Listener struct {
	url               string
	reconnectInterval time.Duration
	pingInterval      time.Duration
	invalidate        InvalidateFunc
	logger            zerolog.Logger

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener creates a Listener delivering change events to invalidate
func NewListener(url string, reconnectInterval, pingInterval time.Duration, invalidate InvalidateFunc, logger zerolog.Logger) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		url:               url,
		reconnectInterval: reconnectInterval,
		pingInterval:      pingInterval,
		invalidate:        invalidate,
		logger:            logger.With().Str("component", "realtime").Logger(),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start begins the connect/read/reconnect loop
func (l *Listener) Start() {
	l.wg.Add(1)
	go l.run()
}

// Close stops the listener and waits for its goroutines
func (l *Listener) Close() {
	l.cancel()

	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.connMu.Unlock()

	l.wg.Wait()
	l.logger.Info().Msg("realtime listener closed")
}

func (l *Listener) run() {
	defer l.wg.Done()

	for {
		if l.ctx.Err() != nil {
			return
		}

		if err := l.connect(); err != nil {
			l.logger.Warn().Err(err).Msg("change feed connect failed")
		} else {
			l.readLoop()
		}

		select {
		case <-l.ctx.Done():
			return
		case <-time.After(l.reconnectInterval):
		}
	}
}

func (l *Listener) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(l.ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial change feed: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.logger.Info().Str("url", l.url).Msg("change feed connected")

	if l.pingInterval > 0 {
		l.wg.Add(1)
		go l.pingLoop(conn)
	}
	return nil
}

func (l *Listener) readLoop() {
	l.connMu.RLock()
	conn := l.conn
	l.connMu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if l.ctx.Err() == nil {
				l.logger.Warn().Err(err).Msg("change feed read failed")
			}
			l.connMu.Lock()
			l.conn = nil
			l.connMu.Unlock()
			conn.Close()
			return
		}
		l.handleMessage(data)
	}
}

func (l *Listener) handleMessage(data []byte) {
	var event ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		l.logger.Debug().Err(err).Msg("unparseable change event")
		return
	}

	category, ok := tableCategories[event.Table]
	if !ok {
		l.logger.Debug().Str("table", event.Table).Msg("change event for untracked table")
		return
	}

	l.logger.Debug().
		Str("table", event.Table).
		Str("id", event.ID).
		Str("action", event.Action).
		Msg("change event")

	l.invalidate(category, event.ID)
}

func (l *Listener) pingLoop(conn *websocket.Conn) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.connMu.RLock()
			current := l.conn
			l.connMu.RUnlock()
			if current != conn {
				return
			}

			l.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			l.writeMu.Unlock()
			if err != nil {
				l.logger.Debug().Err(err).Msg("ping write failed")
				return
			}
		}
	}
}
