package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
)

type testEvent struct{ name string }

func (e testEvent) EventType() string { return e.name }

type payloadEvent struct{}

func (payloadEvent) EventType() string { return "payload" }
func (payloadEvent) Event() *types.Event {
	return &types.Event{Type: "payload", Attributes: map[string]string{"k": "v"}}
}

type recorder struct{ seen []string }

func (r *recorder) Emit(evt Event) { r.seen = append(r.seen, evt.EventType()) }

func TestBufferFlushPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent{"a"})
	buf.Emit(nil)
	buf.Emit(testEvent{"b"})
	require.Equal(t, 2, buf.Len())

	rec := &recorder{}
	buf.FlushTo(rec)
	require.Equal(t, []string{"a", "b"}, rec.seen)
	require.Zero(t, buf.Len())
}

func TestBufferReset(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent{"a"})
	buf.Reset()
	rec := &recorder{}
	buf.FlushTo(rec)
	if len(rec.seen) != 0 {
		t.Fatalf("expected no events after reset, got %v", rec.seen)
	}
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	fan := NewFanout(a, nil)
	fan.Add(b)
	fan.Emit(testEvent{"x"})
	require.Equal(t, []string{"x"}, a.seen)
	require.Equal(t, []string{"x"}, b.seen)
}

func TestCanonical(t *testing.T) {
	payload, ok := Canonical(payloadEvent{})
	require.True(t, ok)
	require.Equal(t, "v", payload.Attributes["k"])

	_, ok = Canonical(testEvent{"plain"})
	require.False(t, ok)
}
