package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
)

// Topic names an event stream. Topic values double as the "type"
// discriminator of real-time broadcast frames.
type Topic string

const (
	TopicConnectionStatus Topic = "connection_status_update"
	TopicDeviceResponse   Topic = "device_response"
	TopicCommandUsage     Topic = "command_usage"
	TopicEcho             Topic = "echo"
)

// DefaultQueueSize is the per-subscriber buffer when none is configured.
const DefaultQueueSize = 256

// Event is one published payload.
type Event struct {
	Topic       Topic
	Payload     any
	PublishedAt time.Time
}

// Handler processes events for one subscriber. Errors are logged and counted.
type Handler func(ctx context.Context, ev Event) error

// Observer receives delivery failures, typically metrics.Metrics.
type Observer interface {
	EventDropped(topic, subscriber string)
	HandlerFailed(topic, subscriber string)
}

type nopObserver struct{}

func (nopObserver) EventDropped(string, string)  {}
func (nopObserver) HandlerFailed(string, string) {}

type subscriber struct {
	name    string
	topics  []Topic
	handler Handler
	queue   chan Event
}

// Bus is an in-process publish/subscribe hub.
//
// Each subscriber owns a bounded queue drained by its own goroutine, so a
// slow or failing handler only delays itself. Publish never blocks: when a
// subscriber's queue is full the event is dropped for that subscriber.
// Events reach a subscriber in publish order.
type Bus struct {
	logger    *logging.Logger
	observer  Observer
	queueSize int

	mu     sync.RWMutex
	subs   map[Topic][]*subscriber
	all    map[*subscriber]struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the per-subscriber queue length.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithObserver reports drops and handler failures to o.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.observer = o
		}
	}
}

// New creates an empty bus.
func New(logger *logging.Logger, opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger:    logger.With("component", "eventbus"),
		observer:  nopObserver{},
		queueSize: DefaultQueueSize,
		subs:      make(map[Topic][]*subscriber),
		all:       make(map[*subscriber]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for the given topics and returns a function
// that removes the subscription. Events already queued are still delivered
// after unsubscribe.
func (b *Bus) Subscribe(name string, handler Handler, topics ...Topic) (unsubscribe func()) {
	s := &subscriber{
		name:    name,
		topics:  topics,
		handler: handler,
		queue:   make(chan Event, b.queueSize),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], s)
	}
	b.all[s] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(s)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(s) })
	}
}

// Publish queues payload for every subscriber of topic without blocking.
func (b *Bus) Publish(topic Topic, payload any) {
	ev := Event{Topic: topic, Payload: payload, PublishedAt: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, s := range b.subs[topic] {
		select {
		case s.queue <- ev:
		default:
			b.observer.EventDropped(string(topic), s.name)
			b.logger.Warn("subscriber queue full, event dropped",
				"topic", topic, "subscriber", s.name)
		}
	}
}

// SubscriberCount returns the number of subscribers for topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close stops accepting events, lets every subscriber drain its queue, and
// waits for them to finish or for ctx to end.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for s := range b.all {
		close(s.queue)
	}
	b.subs = make(map[Topic][]*subscriber)
	b.all = make(map[*subscriber]struct{})
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		return fmt.Errorf("eventbus close: %w", ctx.Err())
	}
}

func (b *Bus) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.all[s]; !ok {
		return
	}
	delete(b.all, s)
	for _, t := range s.topics {
		list := b.subs[t]
		for i, cur := range list {
			if cur == s {
				b.subs[t] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[t]) == 0 {
			delete(b.subs, t)
		}
	}
	close(s.queue)
}

func (b *Bus) run(s *subscriber) {
	defer b.wg.Done()
	for ev := range s.queue {
		b.deliver(s, ev)
	}
}

// deliver runs one handler invocation in isolation.
func (b *Bus) deliver(s *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.observer.HandlerFailed(string(ev.Topic), s.name)
			b.logger.Error("event handler panic recovered",
				"topic", ev.Topic, "subscriber", s.name, "panic", r)
		}
	}()

	if err := s.handler(b.ctx, ev); err != nil {
		b.observer.HandlerFailed(string(ev.Topic), s.name)
		b.logger.Warn("event handler failed",
			"topic", ev.Topic, "subscriber", s.name, "error", err)
	}
}
