package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/config"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Channel is the postgres NOTIFY channel carrying cache invalidations between instances.
const Channel = "cache_invalidations"

// maxPayload stays under the 8000 byte NOTIFY payload limit.
const maxPayload = 7000

// Invalidation is the payload of one notification
type Invalidation struct {
	Origin string   `json:"origin"`
	Keys   []string `json:"keys"`
}

// InvalidationHandler drops keys from the local cache
type InvalidationHandler func(ctx context.Context, keys []string) error

// PubSub broadcasts cache invalidations over PostgreSQL LISTEN/NOTIFY and applies the ones
// published by peer instances.
type PubSub struct {
	connStr  string
	db       *sqlx.DB
	origin   string
	listener *pq.Listener
	handlers []InvalidationHandler
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewPubSub creates a new PubSub instance
func NewPubSub(conf *config.Config, db *sqlx.DB) *PubSub {
	ctx, cancel := context.WithCancel(context.Background())

	return &PubSub{
		connStr:  conf.DSN(),
		db:       db,
		origin:   uuid.NewString(),
		handlers: make([]InvalidationHandler, 0),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe adds a handler for invalidations published by peers
func (ps *PubSub) Subscribe(handler InvalidationHandler) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.handlers = append(ps.handlers, handler)
}

// Broadcast publishes keys to every peer. It implements cache.Broadcaster.
func (ps *PubSub) Broadcast(ctx context.Context, keys []string) error {
	payloads, err := encodePayloads(ps.origin, keys)
	if err != nil {
		return err
	}

	for _, payload := range payloads {
		if _, err := ps.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, payload); err != nil {
			return fmt.Errorf("failed to notify %s: %w", Channel, err)
		}
	}
	return nil
}

// Start begins listening for notifications
func (ps *PubSub) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("PubSub listener error", slog.Any("error", err))
		}
		if ev == pq.ListenerEventConnectionAttemptFailed {
			slog.Warn("PubSub connection attempt failed, will retry")
		}
		if ev == pq.ListenerEventDisconnected {
			slog.Warn("PubSub disconnected, will attempt reconnect")
		}
		if ev == pq.ListenerEventReconnected {
			// Invalidations sent while disconnected are lost, so the local cache can no longer
			// be trusted.
			slog.Info("PubSub reconnected, dropping the local cache")
			ps.notifyHandlers([]string{cache.Pattern("")})
		}
	}

	ps.listener = pq.NewListener(ps.connStr, 10*time.Second, time.Minute, reportProblem)

	if err := ps.listener.Listen(Channel); err != nil {
		return fmt.Errorf("failed to listen on %s channel: %w", Channel, err)
	}

	slog.Info("PubSub started listening for cache invalidations")

	go ps.processNotifications()

	return nil
}

// Stop closes the listener
func (ps *PubSub) Stop() {
	ps.cancel()
	if ps.listener != nil {
		ps.listener.Close()
	}
	slog.Info("PubSub stopped")
}

func (ps *PubSub) processNotifications() {
	for {
		select {
		case <-ps.ctx.Done():
			return
		case notification := <-ps.listener.Notify:
			if notification == nil {
				// Connection lost, will be handled by reportProblem callback
				continue
			}

			var inv Invalidation
			if err := json.UnmarshalString(notification.Extra, &inv); err != nil {
				slog.Warn("Invalid notification payload", slog.String("payload", notification.Extra), slog.Any("error", err))
				continue
			}

			if inv.Origin == ps.origin {
				continue
			}

			slog.Debug("Received cache invalidation", slog.Any("keys", inv.Keys))

			ps.notifyHandlers(inv.Keys)
		}
	}
}

// notifyHandlers runs handlers inline so invalidations apply in the order they were published.
func (ps *PubSub) notifyHandlers(keys []string) {
	ps.mu.RLock()
	handlers := make([]InvalidationHandler, len(ps.handlers))
	copy(handlers, ps.handlers)
	ps.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ps.ctx, keys); err != nil {
			slog.Error("Failed to apply cache invalidation", slog.Any("keys", keys), slog.Any("error", err))
		}
	}
}

// encodePayloads splits keys into as few notifications as fit the payload limit.
func encodePayloads(origin string, keys []string) ([]string, error) {
	var payloads []string
	var batch []string

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		raw, err := json.MarshalString(Invalidation{Origin: origin, Keys: batch})
		if err != nil {
			return fmt.Errorf("failed to encode invalidation: %w", err)
		}
		payloads = append(payloads, raw)
		batch = nil
		return nil
	}

	// origin, braces and field names
	const overhead = 64
	size := overhead + len(origin)
	for _, key := range keys {
		// quotes and comma
		keySize := len(key) + 3
		if len(batch) > 0 && size+keySize > maxPayload {
			if err := flush(); err != nil {
				return nil, err
			}
			size = overhead + len(origin)
		}
		batch = append(batch, key)
		size += keySize
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return payloads, nil
}
