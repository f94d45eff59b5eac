// Package observe holds observable values that the presentation layer
// subscribes to. A Value notifies its subscribers synchronously, on the
// goroutine that called Set, and only when the stored value changed.
package observe

import "sync"

// Value is a single observable slot.
type Value[T any] struct {
	mu    sync.Mutex
	v     T
	equal func(a, b T) bool
	next  int
	subs  map[int]func(T)
}

// New returns a Value that compares with ==.
func New[T comparable](initial T) *Value[T] {
	return NewWithEqual(initial, func(a, b T) bool { return a == b })
}

// NewWithEqual returns a Value that uses equal to suppress repeated
// notifications. A nil equal notifies on every Set.
func NewWithEqual[T any](initial T, equal func(a, b T) bool) *Value[T] {
	if equal == nil {
		equal = func(T, T) bool { return false }
	}
	return &Value[T]{v: initial, equal: equal, subs: map[int]func(T){}}
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

// Set stores v and notifies subscribers if it differs from the current
// value. It reports whether a notification happened.
func (o *Value[T]) Set(v T) bool {
	o.mu.Lock()
	if o.equal(o.v, v) {
		o.mu.Unlock()
		return false
	}
	o.v = v
	subs := make([]func(T), 0, len(o.subs))
	for i := 0; i < o.next; i++ {
		if fn, ok := o.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
	return true
}

// Subscribe registers fn and immediately calls it with the current value.
// The returned function removes the subscription; calling it twice is fine.
func (o *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs[id] = fn
	v := o.v
	o.mu.Unlock()

	fn(v)
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}
