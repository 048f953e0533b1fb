package session

import "sync"

// Subscription identifies a registered listener.
type Subscription struct {
	id uint64
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Observable holds a value and fans every change out to its listeners.
// Listeners are invoked synchronously, in registration order, outside the
// lock so they may subscribe or unsubscribe from within a callback.
type Observable[T any] struct {
	mu     sync.Mutex
	value  T
	subs   []subscriber[T]
	nextID uint64
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial}
}

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Subscribe invokes fn with the current value, then appends it to the
// fan-out list.
func (o *Observable[T]) Subscribe(fn func(T)) Subscription {
	o.mu.Lock()
	o.nextID++
	sub := Subscription{id: o.nextID}
	current := o.value
	o.mu.Unlock()

	fn(current)

	o.mu.Lock()
	o.subs = append(o.subs, subscriber[T]{id: sub.id, fn: fn})
	o.mu.Unlock()
	return sub
}

// Unsubscribe removes the listener. Unknown subscriptions are ignored.
func (o *Observable[T]) Unsubscribe(sub Subscription) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == sub.id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Set stores v and notifies every listener, even when v is unchanged.
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	o.value = v
	snapshot := make([]subscriber[T], len(o.subs))
	copy(snapshot, o.subs)
	o.mu.Unlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

func (o *Observable[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

func (o *Observable[T]) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = nil
}
