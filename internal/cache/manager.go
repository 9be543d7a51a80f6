package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidation is returned when a mutation committed but its cache invalidation did not
// complete. The write must not be reported as successful.
var ErrInvalidation = errors.New("cache invalidation failed")

const (
	defaultInvalidateTimeout = 5 * time.Second
	generationStripes        = 256
)

// Broadcaster tells peer processes which keys were invalidated, for stores that are
// local to a process.
type Broadcaster interface {
	Broadcast(ctx context.Context, keys []string) error
}

type Options struct {
	// InvalidateTimeout bounds an invalidation run. It is measured on a context detached
	// from the caller, so a cancelled request still completes its invalidation.
	InvalidateTimeout time.Duration

	Broadcaster Broadcaster
}

// Manager is the only writer of application keys in the Store. Reads go through Read or
// ReadList, writes through Mutate.
type Manager struct {
	store  Store
	opts   Options
	tracer trace.Tracer

	// Striped generation counters, bumped before every invalidation. A read only writes
	// back when no invalidation touched its stripe while the loader ran.
	mu          [generationStripes]sync.Mutex
	generations [generationStripes]uint64
}

func NewManager(store Store, opts Options) *Manager {
	if opts.InvalidateTimeout <= 0 {
		opts.InvalidateTimeout = defaultInvalidateTimeout
	}

	return &Manager{
		store:  store,
		opts:   opts,
		tracer: otel.Tracer("teamboard/cache"),
	}
}

// SetBroadcaster installs the broadcaster once the peer channel is up.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.opts.Broadcaster = b
}

type readOptions struct {
	ttl time.Duration
}

type ReadOption func(*readOptions)

// WithTTL bounds the lifetime of the written-back entry.
func WithTTL(ttl time.Duration) ReadOption {
	return func(o *readOptions) {
		o.ttl = ttl
	}
}

// Read returns the cached value under key, or calls loader and stores its result.
func Read[T any](ctx context.Context, m *Manager, key string, loader func(context.Context) (T, error), opts ...ReadOption) (T, error) {
	var zero T

	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := m.tracer.Start(ctx, "cache.read", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache get failed")
		return zero, fmt.Errorf("failed to read cache: %w", err)
	}

	if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
		slog.WarnContext(ctx, "Ignoring undecodable cache entry", slog.String("key", key), slog.Any("error", err))
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	gen := m.generation(key)

	value, err := loader(ctx)
	if err != nil {
		return zero, err
	}

	m.writeBack(ctx, key, gen, value, o.ttl)

	return value, nil
}

// ReadList is Read for collections. An empty result is returned as notFound and is never
// cached, so a later write cannot be masked by a cached empty answer.
func ReadList[T any](ctx context.Context, m *Manager, key string, loader func(context.Context) ([]T, error), notFound error, opts ...ReadOption) ([]T, error) {
	items, err := Read(ctx, m, key, func(ctx context.Context) ([]T, error) {
		items, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, notFound
		}
		return items, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		// A foreign writer left an empty collection behind; treat it like a miss result.
		return nil, notFound
	}

	return items, nil
}

// Mutate runs op and then invalidates keys(result). Invalidation happens strictly after op
// succeeded; its failure is returned wrapped in ErrInvalidation.
func Mutate[T any](ctx context.Context, m *Manager, op func(context.Context) (T, error), keys func(T) []string) (T, error) {
	result, err := op(ctx)
	if err != nil {
		return result, err
	}

	if err := m.Invalidate(ctx, keys(result)...); err != nil {
		return result, err
	}

	return result, nil
}

// Invalidate removes keys from the store. Keys built with Pattern remove every key with
// that prefix.
func (m *Manager) Invalidate(ctx context.Context, keys ...string) error {
	keys = dedupe(keys)
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.InvalidateTimeout)
	defer cancel()

	ctx, span := m.tracer.Start(ctx, "cache.invalidate", trace.WithAttributes(attribute.StringSlice("cache.keys", keys)))
	defer span.End()

	err := m.invalidateLocal(ctx, keys)

	if err == nil && m.opts.Broadcaster != nil {
		if berr := m.opts.Broadcaster.Broadcast(ctx, keys); berr != nil {
			err = fmt.Errorf("failed to broadcast invalidation: %w", berr)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalidation failed")
		slog.ErrorContext(ctx, "Cache invalidation failed", slog.Any("keys", keys), slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrInvalidation, err)
	}

	return nil
}

// DropLocal applies invalidations received from a peer. It does not re-broadcast.
func (m *Manager) DropLocal(ctx context.Context, keys []string) error {
	return m.invalidateLocal(ctx, dedupe(keys))
}

func (m *Manager) invalidateLocal(ctx context.Context, keys []string) error {
	var plain, prefixes []string
	for _, key := range keys {
		if isPattern(key) {
			prefixes = append(prefixes, key[:len(key)-len(patternSuffix)])
			m.bumpPattern()
			continue
		}
		plain = append(plain, key)
		m.bump(key)
	}

	var errs []error
	if len(plain) > 0 {
		if err := m.store.Delete(ctx, plain...); err != nil {
			errs = append(errs, err)
		}
	}
	for _, prefix := range prefixes {
		if err := m.store.DeletePrefix(ctx, prefix); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

type generation struct {
	stripe uint32
	value  uint64
}

func stripeOf(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % generationStripes
}

func (m *Manager) generation(key string) generation {
	s := stripeOf(key)
	m.mu[s].Lock()
	defer m.mu[s].Unlock()
	return generation{stripe: s, value: m.generations[s]}
}

func (m *Manager) bump(key string) {
	s := stripeOf(key)
	m.mu[s].Lock()
	m.generations[s]++
	m.mu[s].Unlock()
}

func (m *Manager) bumpPattern() {
	// Pattern invalidations may touch any stripe, so they move every stripe forward.
	for s := range m.mu {
		m.mu[s].Lock()
		m.generations[s]++
		m.mu[s].Unlock()
	}
}

// writeBack stores value unless an invalidation of the same stripe ran after gen was taken.
// The check and the write happen under the stripe lock, and invalidations bump the stripe
// before deleting, so a value computed before a mutation can never land after its
// invalidation.
func (m *Manager) writeBack(ctx context.Context, key string, gen generation, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.WarnContext(ctx, "Unable to encode cache entry", slog.String("key", key), slog.Any("error", err))
		return
	}

	m.mu[gen.stripe].Lock()
	defer m.mu[gen.stripe].Unlock()

	if m.generations[gen.stripe] != gen.value {
		return
	}

	if err := m.store.Set(ctx, key, raw, ttl); err != nil {
		slog.WarnContext(ctx, "Unable to write back cache entry", slog.String("key", key), slog.Any("error", err))
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
