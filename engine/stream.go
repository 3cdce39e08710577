package engine

import (
	"context"
)

// Stream is a cancellable sequence of generation events. The channel closes
// after the terminal DoneEvent or ErrorEvent; consumers should drain it.
type Stream struct {
	events chan Event
	cancel context.CancelCauseFunc
}

func newStream(cancel context.CancelCauseFunc) *Stream {
	// Unbuffered: the loop never runs ahead of the consumer, so an Abort
	// issued while handling an event is observed before the next step.
	return &Stream{
		events: make(chan Event),
		cancel: cancel,
	}
}

// Events returns the event channel.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Abort cancels the generation. No further provider request is issued after
// the in-flight step settles, no node writes occur after the abort is
// observed, and the stream terminates with an ErrorEvent wrapping AbortError.
// Aborting more than once is harmless; only the first reason sticks.
func (s *Stream) Abort(reason string) {
	s.cancel(&AbortError{Reason: reason})
}

// emit delivers a progress event, giving up when the consumer is gone and
// the context has been cancelled.
func (s *Stream) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish delivers the terminal event and closes the stream.
func (s *Stream) finish(ev Event) {
	s.events <- ev
	close(s.events)
}
