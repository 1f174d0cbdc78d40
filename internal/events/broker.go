// Package events fans loader progress out to server-sent event streams.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/graphview/internal/loader"
)

const subscriberBufSize = 256

// Event is a single SSE message. Seq increases per broker and becomes the
// SSE id line.
type Event struct {
	Seq     int64
	Name    string
	Target  string
	Payload string
}

// Filter narrows a subscription. Empty sets match everything.
type Filter struct {
	Targets map[string]bool
	Names   map[string]bool
}

func (f Filter) match(evt Event) bool {
	if len(f.Targets) > 0 && !f.Targets[evt.Target] {
		return false
	}
	return len(f.Names) == 0 || f.Names[evt.Name]
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// Broker delivers published events to matching subscribers without blocking
// the publisher.
type Broker struct {
	mu      sync.RWMutex
	subs    map[int64]*subscriber
	lastID  int64
	seq     atomic.Int64
	dropped atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int64]*subscriber)}
}

// Subscribe registers a client and returns its id and buffered channel.
// A full channel loses events rather than stalling Publish.
func (b *Broker) Subscribe(filter Filter) (int64, <-chan Event) {
	sub := &subscriber{ch: make(chan Event, subscriberBufSize), filter: filter}
	b.mu.Lock()
	b.lastID++
	id := b.lastID
	b.subs[id] = sub
	b.mu.Unlock()
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are ignored.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish stamps evt with the next sequence number and offers it to every
// matching subscriber.
func (b *Broker) Publish(evt Event) {
	evt.Seq = b.seq.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.filter.match(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts deliveries lost to full subscriber buffers.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

// LoaderObserver publishes loader events as "load.<type>" messages.
func (b *Broker) LoaderObserver() loader.Observer {
	return func(ev loader.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			slog.Warn("events marshal failed", "type", ev.Type, "error", err)
			return
		}
		b.Publish(Event{Name: "load." + ev.Type, Target: ev.TargetID, Payload: string(payload)})
	}
}
