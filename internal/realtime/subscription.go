package realtime

import (
	"context"
	"sync"
)

// Subscription is a scoped listener. Matching events are buffered until
// read; Close unregisters the handler and is safe to call more than once.
type Subscription struct {
	events      chan Event
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

// Subscribe registers a listener for name that keeps only events accepted by
// match (all events when match is nil). The subscription closes itself when
// ctx ends.
func Subscribe(ctx context.Context, ch Channel, name string, match func(Event) bool) *Subscription {
	s := &Subscription{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	s.unsubscribe = ch.On(name, func(ev Event) {
		if match != nil && !match(ev) {
			return
		}
		select {
		case <-s.done:
		case s.events <- ev:
		default:
		}
	})

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// Events exposes matched events. The channel is never closed; select on Done too.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscription has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the listener.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.unsubscribe()
	})
}

// Next blocks for the next matched event, ctx expiry or Close.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-s.done:
		select {
		case ev := <-s.events:
			return ev, nil
		default:
			return Event{}, context.Canceled
		}
	}
}
