package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Record(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Record(Event{Kind: KindSignin, UserID: "alice"})
	}
	d.Close()

	events := sink.all()
	require.Len(t, events, 5)
	require.Equal(t, KindSignin, events[0].Kind)
	require.False(t, events[0].Timestamp.IsZero())
}

func TestDispatcherNilIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Record(Event{Kind: KindAuthorize})
	d.Close()
	require.Zero(t, d.Dropped())
}

func TestDispatcherRecordAfterClose(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{BufferSize: 1}, sink)
	d.Close()

	d.Record(Event{Kind: KindTokenRevoke})
	require.Empty(t, sink.all())
}
