// ABOUTME: Refresh progress counters for one account and their combination across accounts
// ABOUTME: Progress is complete when no tasks remain

package progress

import "sync"

// Snapshot is a point-in-time view of task counts.
type Snapshot struct {
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
	Completed int `json:"completed"`
}

// IsComplete reports whether no tasks remain.
func (s Snapshot) IsComplete() bool {
	return s.Remaining < 1
}

// Add returns the element-wise sum of s and other.
func (s Snapshot) Add(other Snapshot) Snapshot {
	return Snapshot{
		Total:     s.Total + other.Total,
		Remaining: s.Remaining + other.Remaining,
		Completed: s.Completed + other.Completed,
	}
}

// Combine sums snapshots.
func Combine(snaps ...Snapshot) Snapshot {
	var total Snapshot
	for _, s := range snaps {
		total = total.Add(s)
	}
	return total
}

// Tracker counts tasks for one in-flight refresh. When the last task
// completes the counters reset to zero.
type Tracker struct {
	mu       sync.Mutex
	total    int
	done     int
	onChange func(Snapshot)
}

// NewTracker creates a tracker. onChange may be nil and is called without
// the tracker's lock held.
func NewTracker(onChange func(Snapshot)) *Tracker {
	return &Tracker{onChange: onChange}
}

// Snapshot returns the current counts.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{Total: t.total, Remaining: t.total - t.done, Completed: t.done}
}

// AddTasks adds n pending tasks.
func (t *Tracker) AddTasks(n int) {
	if n <= 0 {
		return
	}
	t.update(func() { t.total += n })
}

// CompleteTask marks one task done.
func (t *Tracker) CompleteTask() {
	t.CompleteTasks(1)
}

// CompleteTasks marks n tasks done, never more than are pending.
func (t *Tracker) CompleteTasks(n int) {
	if n <= 0 {
		return
	}
	t.update(func() {
		t.done += n
		if t.done >= t.total {
			t.total, t.done = 0, 0
		}
	})
}

// Reset clears all counts.
func (t *Tracker) Reset() {
	t.update(func() { t.total, t.done = 0, 0 })
}

func (t *Tracker) update(fn func()) {
	t.mu.Lock()
	before := t.snapshotLocked()
	fn()
	after := t.snapshotLocked()
	hook := t.onChange
	t.mu.Unlock()
	if hook != nil && before != after {
		hook(after)
	}
}
