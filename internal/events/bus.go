package events

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"

	lf "github.com/redgrape/thegrid/internal/logfield"
)

// Handler consumes one event payload. Returned errors are logged by the bus
// and never reach the emitter.
type Handler func(ctx context.Context, payload interface{}) error

// Subscription identifies one registered handler. Handlers are closures, so
// identity has to be an explicit token; two closures built from the same
// function literal share a code pointer and cannot be told apart by it.
type Subscription struct {
	name string
	id   int64
}

type subscription struct {
	id      int64
	handler Handler
}

// Bus is an in-process publish/subscribe fan-out. It holds no state beyond
// the handler table; events are lost on restart, durability lives in the
// pipeline store.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]subscription
	lastID   int64

	emitted atomic.Int64
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger:   logger.Named("bus"),
		handlers: make(map[string][]subscription),
	}
}

func (b *Bus) Subscribe(name string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	b.handlers[name] = append(b.handlers[name], subscription{
		id:      b.lastID,
		handler: handler,
	})
	return &Subscription{name: name, id: b.lastID}
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[sub.name]
	for i, s := range subs {
		if s.id == sub.id {
			b.handlers[sub.name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[sub.name]) == 0 {
		delete(b.handlers, sub.name)
	}
}

// Emit runs every handler of the event concurrently and returns once all of
// them have settled. Emission is best-effort: handler errors and panics are
// logged here, siblings keep running, nothing propagates to the caller.
func (b *Bus) Emit(ctx context.Context, name string, payload interface{}) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[name]))
	copy(subs, b.handlers[name])
	b.mu.RUnlock()

	b.emitted.Inc()
	if len(subs) == 0 {
		b.logger.Debug("No subscribers for event", lf.Event(name))
		return
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		sub := sub
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Event handler panicked", lf.Event(name), zap.Any("panic", r))
				}
			}()
			if err := sub.handler(ctx, payload); err != nil {
				b.logger.Error("Event handler failed", lf.Event(name), zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()
}

func (b *Bus) HasSubscribers(name string) bool {
	return b.SubscriberCount(name) > 0
}

func (b *Bus) SubscriberCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

func (b *Bus) EventNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := maps.Keys(b.handlers)
	sort.Strings(names)
	return names
}

func (b *Bus) Emitted() int64 {
	return b.emitted.Load()
}
