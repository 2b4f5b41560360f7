package events

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func newTestBus() *Bus {
	return NewBus(zap.NewNop())
}

func TestEmitFansOutToAllHandlers(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	got := make([]string, 0)
	record := func(tag string) Handler {
		return func(ctx context.Context, payload interface{}) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+payload.(string))
			return nil
		}
	}

	bus.Subscribe("content.ready", record("a"))
	bus.Subscribe("content.ready", record("b"))
	bus.Subscribe("other.ready", record("c"))

	bus.Emit(context.Background(), "content.ready", "payload")

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d: %v", len(got), got)
	}
	for _, delivery := range got {
		if delivery != "a:payload" && delivery != "b:payload" {
			t.Fatalf("unexpected delivery %q", delivery)
		}
	}
}

func TestEmitWithoutSubscribers(t *testing.T) {
	bus := newTestBus()
	// Must not block or panic.
	bus.Emit(context.Background(), "nobody.cares", 42)
	if bus.Emitted() != 1 {
		t.Fatalf("expected 1 emission, got %d", bus.Emitted())
	}
}

func TestFailingHandlerDoesNotStopSiblings(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	delivered := 0
	bus.Subscribe("evt", func(ctx context.Context, payload interface{}) error {
		panic("handler exploded")
	})
	bus.Subscribe("evt", func(ctx context.Context, payload interface{}) error {
		return context.Canceled
	})
	bus.Subscribe("evt", func(ctx context.Context, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		delivered++
		return nil
	})

	bus.Emit(context.Background(), "evt", nil)

	if delivered != 1 {
		t.Fatalf("healthy sibling ran %d times, expected 1", delivered)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	calls := 0
	handler := func(ctx context.Context, payload interface{}) error {
		calls++
		return nil
	}

	sub := bus.Subscribe("evt", handler)
	bus.Emit(context.Background(), "evt", nil)
	bus.Unsubscribe(sub)
	bus.Emit(context.Background(), "evt", nil)

	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
	if bus.HasSubscribers("evt") {
		t.Fatal("expected no subscribers left")
	}
}

func TestUnsubscribeDistinguishesClosures(t *testing.T) {
	bus := newTestBus()

	// Both handlers come from the same function literal and therefore share
	// a code pointer; only the captured counter tells them apart.
	counter := func(target *int) Handler {
		return func(ctx context.Context, payload interface{}) error {
			*target++
			return nil
		}
	}

	var first, second int
	firstSub := bus.Subscribe("evt", counter(&first))
	bus.Subscribe("evt", counter(&second))

	bus.Unsubscribe(firstSub)
	bus.Emit(context.Background(), "evt", nil)

	if first != 0 {
		t.Fatalf("unsubscribed handler ran %d times", first)
	}
	if second != 1 {
		t.Fatalf("surviving handler ran %d times, expected 1", second)
	}
}

func TestIntrospection(t *testing.T) {
	bus := newTestBus()
	noop := func(ctx context.Context, payload interface{}) error { return nil }

	bus.Subscribe("b.ready", noop)
	bus.Subscribe("a.ready", noop)
	bus.Subscribe("a.ready", noop)

	if count := bus.SubscriberCount("a.ready"); count != 2 {
		t.Fatalf("expected 2 subscribers, got %d", count)
	}
	if !bus.HasSubscribers("b.ready") {
		t.Fatal("expected b.ready to have subscribers")
	}
	if bus.HasSubscribers("c.ready") {
		t.Fatal("expected c.ready to have none")
	}
	if diff := cmp.Diff([]string{"a.ready", "b.ready"}, bus.EventNames()); diff != "" {
		t.Fatalf("unexpected event names (-want +got):\n%s", diff)
	}
}

func TestConcurrentEmitters(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	total := 0
	bus.Subscribe("evt", func(ctx context.Context, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		total++
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), "evt", nil)
		}()
	}
	wg.Wait()

	if total != 16 {
		t.Fatalf("expected 16 deliveries, got %d", total)
	}
	if bus.Emitted() != 16 {
		t.Fatalf("expected 16 emissions, got %d", bus.Emitted())
	}
}

func TestTopicNames(t *testing.T) {
	if got := ReadyTopic(SourceFigma); got != "figma-to-storyblok.ready" {
		t.Fatalf("unexpected ready topic %q", got)
	}
	if got := CompletedTopic(SourceEditor); got != "storyblok-editor.completed" {
		t.Fatalf("unexpected completed topic %q", got)
	}
}
