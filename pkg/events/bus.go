// Package events carries cache notifications from the download pipeline to
// any number of independently rendered views.
package events

import (
	"sort"
	"sync"
)

// Event is either DownloadsChanged or Toast.
type Event interface {
	isEvent()
}

// DownloadsChanged signals that the ledger or the cache was mutated.
// Listeners re-query whatever they display.
type DownloadsChanged struct{}

type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
)

// Toast is a user-facing status message.
type Toast struct {
	Type    ToastType
	Message string
}

func (DownloadsChanged) isEvent() {}
func (Toast) isEvent()            {}

type Publisher interface {
	Publish(Event)
}

// Bus is a synchronous publish/subscribe channel. Listeners are called in
// subscription order on the publishing goroutine, so a listener must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(Event), len(ids))
	for i, id := range ids {
		listeners[i] = b.subs[id]
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(e)
	}
}

// Notify publishes a toast to p, which may be nil.
func Notify(p Publisher, t ToastType, message string) {
	if p == nil {
		return
	}
	p.Publish(Toast{Type: t, Message: message})
}

// Changed publishes DownloadsChanged to p, which may be nil.
func Changed(p Publisher) {
	if p == nil {
		return
	}
	p.Publish(DownloadsChanged{})
}

// Recorder collects published events. Useful for tests and for views that
// poll instead of subscribing.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Toasts returns the recorded toasts in publication order.
func (r *Recorder) Toasts() []Toast {
	var out []Toast
	for _, e := range r.Events() {
		if t, ok := e.(Toast); ok {
			out = append(out, t)
		}
	}
	return out
}

// ChangeCount returns how many DownloadsChanged events were recorded.
func (r *Recorder) ChangeCount() int {
	n := 0
	for _, e := range r.Events() {
		if _, ok := e.(DownloadsChanged); ok {
			n++
		}
	}
	return n
}
