// Package bridge ingests telemetry frames pushed over a websocket by an in-sim script.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"flightlogger/pkg/sim"
)

// DefaultStaleAfter is how long a frame remains valid without a newer one.
const DefaultStaleAfter = 3 * time.Second

// Bridge is a sim.Source fed by websocket clients. The latest frame wins.
type Bridge struct {
	mu         sync.RWMutex
	latest     sim.Telemetry
	receivedAt time.Time

	staleAfter time.Duration
	now        func() time.Time
	upgrader   websocket.Upgrader
	clients    atomic.Int32
}

// New creates a bridge. A non-positive staleAfter uses DefaultStaleAfter.
func New(staleAfter time.Duration) *Bridge {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Bridge{
		staleAfter: staleAfter,
		now:        time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The sim runs in a browser tab on another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and reads telemetry frames until the client goes away.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Telemetry bridge upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	b.clients.Add(1)
	defer b.clients.Add(-1)
	slog.Info("Telemetry bridge connected", "remote", r.RemoteAddr)

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Telemetry bridge read error", "error", err)
			}
			slog.Info("Telemetry bridge disconnected", "remote", r.RemoteAddr)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var t sim.Telemetry
		if err := json.Unmarshal(msg, &t); err != nil {
			slog.Debug("Telemetry bridge dropped malformed frame", "error", err)
			continue
		}
		b.Push(t)
	}
}

// Push records a frame as the latest telemetry.
func (b *Bridge) Push(t sim.Telemetry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = t
	b.receivedAt = b.now()
}

// Sample returns the latest frame, or sim.ErrUnavailable when none is fresh.
func (b *Bridge) Sample(ctx context.Context) (sim.Telemetry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.receivedAt.IsZero() || b.now().Sub(b.receivedAt) > b.staleAfter {
		return sim.Telemetry{}, sim.ErrUnavailable
	}
	return b.latest, nil
}

// Connected returns the number of open websocket clients.
func (b *Bridge) Connected() int {
	return int(b.clients.Load())
}
