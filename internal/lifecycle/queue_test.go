package lifecycle

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestQueueDrainOrder(t *testing.T) {
	q := NewQueue(nil)
	var got []int
	for i := 0; i < 3; i++ {
		q.Schedule(func() { got = append(got, i) })
	}
	q.Schedule(nil)

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	if ran := q.Drain(); ran != 3 {
		t.Errorf("Drain() = %d, want 3", ran)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("tasks ran out of order: %v", got)
	}
	if q.Len() != 0 {
		t.Error("queue not empty after drain")
	}
}

func TestQueueRunsTasksScheduledDuringDrain(t *testing.T) {
	q := NewQueue(nil)
	ran := false
	q.Schedule(func() {
		q.Schedule(func() { ran = true })
	})
	if n := q.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if !ran {
		t.Error("nested task did not run")
	}
}

func TestQueueRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	q := NewQueue(slog.New(slog.NewTextHandler(&buf, nil)))
	after := false
	q.Schedule(func() { panic("teardown of destroyed instance") })
	q.Schedule(func() { after = true })

	q.Drain()

	if !after {
		t.Error("task after a panicking task did not run")
	}
	if !strings.Contains(buf.String(), "deferred task panicked") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}
