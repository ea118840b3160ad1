// Package events is a small bounded pub/sub bus the engine uses to surface
// run progress (run start, snapshot completion, run completion) to embedders
// without coupling them to the simulation loop.
package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	metrics "github.com/Fede-Berga/satellite-routing/engine/telemetry/metrics"
)

const (
	CategorySnapshot = "snapshot"
	CategoryRun      = "run"
	CategoryError    = "error"
)

// Event is the structured envelope published on the bus.
type Event struct {
	Time     time.Time              `json:"time"`
	Category string                 `json:"category"`
	Type     string                 `json:"type"`
	Severity string                 `json:"severity,omitempty"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
}

// Subscription is a handle representing a consumer of events.
type Subscription interface {
	C() <-chan Event
	Close() error
	ID() int64
}

// BusStats returns runtime counters for observability.
type BusStats struct {
	Subscribers int64
	Published   uint64
	Dropped     uint64
}

// Bus is the event bus interface. Delivery is best effort: a slow subscriber
// drops events rather than stalling the publisher.
type Bus interface {
	Publish(ev Event) error
	Subscribe(buffer int) (Subscription, error)
	Unsubscribe(sub Subscription) error
	Stats() BusStats
}

// NewBus creates a bounded event bus. provider may be nil.
func NewBus(provider metrics.Provider) Bus {
	b := &eventBus{subs: make(map[int64]*subscriber)}
	if provider != nil {
		b.mPublished = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "sns", Subsystem: "events", Name: "published_total", Help: "Total events published"}})
		b.mDropped = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "sns", Subsystem: "events", Name: "dropped_total", Help: "Total events dropped due to backpressure"}})
	}
	return b
}

type eventBus struct {
	mu        sync.RWMutex
	subs      map[int64]*subscriber
	nextID    int64
	published atomic.Uint64
	dropped   atomic.Uint64

	mPublished metrics.Counter
	mDropped   metrics.Counter
}

type subscriber struct {
	id     int64
	ch     chan Event
	bus    *eventBus
	closed atomic.Bool
}

func (s *subscriber) C() <-chan Event { return s.ch }
func (s *subscriber) ID() int64       { return s.id }

func (s *subscriber) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.bus.Unsubscribe(s)
	}
	return nil
}

func (b *eventBus) Publish(ev Event) error {
	if ev.Category == "" {
		return errors.New("event missing category")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	b.published.Add(1)
	if b.mPublished != nil {
		b.mPublished.Inc(1)
	}
	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
			if b.mDropped != nil {
				b.mDropped.Inc(1)
			}
		}
	}
	return nil
}

func (b *eventBus) Subscribe(buffer int) (Subscription, error) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &subscriber{id: b.nextID, ch: make(chan Event, buffer), bus: b}
	b.subs[s.id] = s
	return s, nil
}

func (b *eventBus) Unsubscribe(sub Subscription) error {
	s, ok := sub.(*subscriber)
	if !ok {
		return errors.New("unknown subscription type")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, present := b.subs[s.id]; !present {
		return nil
	}
	delete(b.subs, s.id)
	close(s.ch)
	return nil
}

func (b *eventBus) Stats() BusStats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return BusStats{Subscribers: int64(n), Published: b.published.Load(), Dropped: b.dropped.Load()}
}
