package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blondeglamazon/message-board-sub000/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerAccount = 12
	maxTotalConns      = 10000
)

var (
	ErrServerConnLimit  = errors.New("server connection limit reached")
	ErrAccountConnLimit = errors.New("account connection limit reached")
	ErrHubClosed        = errors.New("hub is shut down")
)

// Hub maps account ids to their open connections.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Name identifies the hub in metrics.
func (h *Hub) Name() string { return "notification hub" }

// Register adds a connection for accountID, enforcing the per-account and
// server-wide limits.
func (h *Hub) Register(accountID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}
	m, ok := h.conns[accountID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[accountID] = m
	}
	if len(m) >= maxConnsPerAccount {
		return nil, ErrAccountConnLimit
	}

	client := newClient(h, conn, accountID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient removes the client and closes its send channel. It is
// safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	m, ok := h.conns[client.AccountID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.AccountID)
	}
	h.totalConns--
	close(client.Send)
	observability.WebSocketConnections.Dec()
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Broadcast sends message to every connection of accountID.
func (h *Hub) Broadcast(accountID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[accountID] {
		c.TrySend(message)
	}
}

// BroadcastAllExcept sends message to every connection whose account is not
// in exclude.
func (h *Hub) BroadcastAllExcept(message []byte, exclude map[uint]struct{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for accountID, clients := range h.conns {
		if _, skip := exclude[accountID]; skip {
			continue
		}
		for c := range clients {
			c.TrySend(message)
		}
	}
}

// StartWiring forwards messages from the Redis subscriber to local
// connections until ctx is done.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, func(channel, payload string) {
		if channel == BroadcastChannel {
			env, err := decodeBroadcast(payload)
			if err != nil {
				observability.Logger.Warn("invalid broadcast envelope", slog.String("error", err.Error()))
				return
			}
			exclude := make(map[uint]struct{}, len(env.Exclude))
			for _, id := range env.Exclude {
				exclude[id] = struct{}{}
			}
			h.BroadcastAllExcept(env.Message, exclude)
			return
		}

		raw, ok := strings.CutPrefix(channel, userChannelPrefix)
		if !ok {
			observability.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		accountID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			observability.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(uint(accountID), []byte(payload))
	})
}

// Shutdown sends a going-away close frame to every connection and drops
// them all. Later registrations fail.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true

	for accountID, clients := range h.conns {
		for client := range clients {
			if client.Conn != nil {
				// WritePump may be mid-write; only control frames are safe here.
				if err := client.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
					time.Now().Add(writeWait)); err != nil {
					observability.Logger.Debug("failed to write close frame",
						slog.Uint64("account_id", uint64(accountID)),
						slog.String("error", err.Error()))
				}
				_ = client.Conn.Close()
			}
			h.removeLocked(client)
		}
	}
	return nil
}
