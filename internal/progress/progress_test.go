// ABOUTME: Tests for refresh progress tracking
// ABOUTME: Covers completion reset, change callbacks, and combination

package progress

import "testing"

func TestTrackerCompletesAndResets(t *testing.T) {
	var seen []Snapshot
	tr := NewTracker(func(s Snapshot) { seen = append(seen, s) })

	tr.AddTasks(3)
	tr.CompleteTask()
	got := tr.Snapshot()
	if got.Total != 3 || got.Remaining != 2 || got.Completed != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.IsComplete() {
		t.Error("expected refresh to be in progress")
	}

	tr.CompleteTasks(5)
	if s := tr.Snapshot(); s != (Snapshot{}) || !s.IsComplete() {
		t.Errorf("expected reset after last task, got %+v", s)
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 change callbacks, got %d", len(seen))
	}
}

func TestTrackerIgnoresNoops(t *testing.T) {
	calls := 0
	tr := NewTracker(func(Snapshot) { calls++ })
	tr.AddTasks(0)
	tr.CompleteTasks(-1)
	tr.Reset()
	if calls != 0 {
		t.Errorf("expected no callbacks, got %d", calls)
	}
}

func TestCombine(t *testing.T) {
	a := Snapshot{Total: 5, Remaining: 2, Completed: 3}
	b := Snapshot{Total: 6, Remaining: 6, Completed: 0}

	got := Combine(a, b)
	want := Snapshot{Total: 11, Remaining: 8, Completed: 3}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if !Combine().IsComplete() {
		t.Error("empty combination should be complete")
	}
}
