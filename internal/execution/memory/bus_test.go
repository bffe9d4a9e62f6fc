package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmcadams/pulse/internal/execution"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

// TestBusDeliversByChannelAndKind checks routing stays scoped to the
// subscribed (channel, kind) pair.
func TestBusDeliversByChannelAndKind(t *testing.T) {
	t.Parallel()

	bus := New(nil, nil)
	var mu sync.Mutex
	var got []execution.Event
	_, err := bus.Subscribe("ch-1", execution.KindTaskStarted, func(evt execution.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskStarted, TaskName: "a"}))
	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-2", Kind: execution.KindTaskStarted, TaskName: "b"}))
	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskCompleted, TaskName: "a"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].TaskName)
}

// TestBusRejectsInvalidEvents ensures malformed payloads never reach
// subscribers.
func TestBusRejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	bus := New(nil, nil)
	delivered := 0
	_, err := bus.Subscribe("ch-1", execution.KindTaskProgress, func(execution.Event) {
		delivered++
	})
	require.NoError(t, err)

	require.Error(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskProgress, TaskName: "a"}))
	require.Error(t, bus.Publish(execution.Event{Kind: execution.KindTaskStarted, TaskName: "a"}))
	require.Equal(t, 0, delivered)
}

// TestBusStampsTimestamps verifies zero timestamps pick up the injected
// clock while explicit ones survive.
func TestBusStampsTimestamps(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	bus := New(nil, fixedClock{at: at})
	var got execution.Event
	_, err := bus.Subscribe("ch-1", execution.KindTaskStarted, func(evt execution.Event) {
		got = evt
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskStarted, TaskName: "a"}))
	require.Equal(t, at, got.TS)

	explicit := at.Add(time.Hour)
	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskStarted, TaskName: "a", TS: explicit}))
	require.Equal(t, explicit, got.TS)
}

// TestBusHandlerPanicContained verifies one panicking handler does not stop
// delivery to the next.
func TestBusHandlerPanicContained(t *testing.T) {
	t.Parallel()

	bus := New(nil, nil)
	_, err := bus.Subscribe("ch-1", execution.KindTaskStarted, func(execution.Event) {
		panic("bad handler")
	})
	require.NoError(t, err)
	delivered := 0
	_, err = bus.Subscribe("ch-1", execution.KindTaskStarted, func(execution.Event) {
		delivered++
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskStarted, TaskName: "a"}))
	require.Equal(t, 1, delivered)
}

// TestBusUnsubscribe checks deregistration, including double calls.
func TestBusUnsubscribe(t *testing.T) {
	t.Parallel()

	bus := New(nil, nil)
	delivered := 0
	sub, err := bus.Subscribe("ch-1", execution.KindTaskStarted, func(execution.Event) {
		delivered++
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskStarted, TaskName: "a"}))
	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskStarted, TaskName: "a"}))
	require.Equal(t, 1, delivered)
}

// TestBusClose rejects subsequent operations.
func TestBusClose(t *testing.T) {
	t.Parallel()

	bus := New(nil, nil)
	bus.Close()

	_, err := bus.Subscribe("ch-1", execution.KindTaskStarted, func(execution.Event) {})
	require.ErrorIs(t, err, ErrClosed)
	err = bus.Publish(execution.Event{Channel: "ch-1", Kind: execution.KindTaskStarted, TaskName: "a"})
	require.ErrorIs(t, err, ErrClosed)
}
