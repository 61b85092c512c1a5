package registry

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/scribeapp/scribe/internal/log"
)

func seconds(v float64) *float64 { return &v }

func sampleSnapshot() []FileRecord {
	return []FileRecord{
		{Path: "/docs/a.pdf", Status: StatusIndexing, LastUpdated: 100},
		{Path: "/docs/b.md", Status: StatusIndexed, IndexingSeconds: seconds(1.5), LastUpdated: 90},
	}
}

func TestReconcile(t *testing.T) {
	t.Run("first snapshot replaces and clears loading", func(t *testing.T) {
		r := New(log.NewNop())
		if !r.Loading() {
			t.Error("Loading() = false before first snapshot, want true")
		}

		if changed := r.Reconcile(sampleSnapshot()); !changed {
			t.Error("Reconcile() = false for first snapshot, want true")
		}
		if r.Loading() {
			t.Error("Loading() = true after first snapshot, want false")
		}
		if diff := cmp.Diff(sampleSnapshot(), r.Records()); diff != "" {
			t.Errorf("registry mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("identical snapshot is reference-stable", func(t *testing.T) {
		r := New(log.NewNop())
		r.Reconcile(sampleSnapshot())
		drain(r.Updates())

		before := r.Records()
		if changed := r.Reconcile(sampleSnapshot()); changed {
			t.Error("Reconcile() = true for identical snapshot, want false")
		}
		after := r.Records()

		if len(before) != len(after) || &before[0] != &after[0] {
			t.Error("Records() slice identity changed across a no-op reconcile")
		}
		select {
		case <-r.Updates():
			t.Error("update emitted for identical snapshot")
		default:
		}
	})

	t.Run("changed snapshot replaces atomically", func(t *testing.T) {
		r := New(log.NewNop())
		r.Reconcile(sampleSnapshot())

		next := sampleSnapshot()
		next[0].Status = StatusIndexed
		next[0].IndexingSeconds = seconds(2.0)

		if changed := r.Reconcile(next); !changed {
			t.Error("Reconcile() = false for changed snapshot, want true")
		}
		if diff := cmp.Diff(next, r.Records()); diff != "" {
			t.Errorf("registry mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty first snapshot still applies", func(t *testing.T) {
		r := New(log.NewNop())
		if changed := r.Reconcile(nil); !changed {
			t.Error("Reconcile() = false for first empty snapshot, want true")
		}
		if r.Loading() {
			t.Error("Loading() = true after first snapshot, want false")
		}
	})

	t.Run("caller keeps ownership of its slice", func(t *testing.T) {
		r := New(log.NewNop())
		snapshot := sampleSnapshot()
		r.Reconcile(snapshot)

		snapshot[0].Status = StatusFailed
		if r.Records()[0].Status == StatusFailed {
			t.Error("mutating the caller's slice leaked into the registry")
		}
	})
}

func TestFileRecordEqual(t *testing.T) {
	base := FileRecord{Path: "/docs/a.pdf", Status: StatusIndexed, IndexingSeconds: seconds(1.5), LastUpdated: 100}

	tests := []struct {
		name  string
		other FileRecord
		want  bool
	}{
		{"identical", FileRecord{Path: "/docs/a.pdf", Status: StatusIndexed, IndexingSeconds: seconds(1.5), LastUpdated: 100}, true},
		{"different duration pointer same value", FileRecord{Path: "/docs/a.pdf", Status: StatusIndexed, IndexingSeconds: seconds(1.5), LastUpdated: 100}, true},
		{"different status", FileRecord{Path: "/docs/a.pdf", Status: StatusIndexing, IndexingSeconds: seconds(1.5), LastUpdated: 100}, false},
		{"missing duration", FileRecord{Path: "/docs/a.pdf", Status: StatusIndexed, LastUpdated: 100}, false},
		{"different timestamp", FileRecord{Path: "/docs/a.pdf", Status: StatusIndexed, IndexingSeconds: seconds(1.5), LastUpdated: 101}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileRecordName(t *testing.T) {
	rec := FileRecord{Path: "/home/user/docs/report.pdf"}
	if got := rec.Name(); got != "report.pdf" {
		t.Errorf("Name() = %q, want %q", got, "report.pdf")
	}
}

func TestStats(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		r := New(log.NewNop())
		want := Stats{}
		if diff := cmp.Diff(want, r.Stats()); diff != "" {
			t.Errorf("stats mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("average covers only timed files", func(t *testing.T) {
		r := New(log.NewNop())
		r.Reconcile([]FileRecord{
			{Path: "/a", Status: StatusIndexed, IndexingSeconds: seconds(1.0)},
			{Path: "/b", Status: StatusIndexed, IndexingSeconds: seconds(2.5)},
			{Path: "/c", Status: StatusIndexing}, // no timing yet
		})

		want := Stats{
			TotalFiles:             3,
			TotalIndexingSeconds:   3.5,
			AverageIndexingSeconds: 1.75,
		}
		if diff := cmp.Diff(want, r.Stats()); diff != "" {
			t.Errorf("stats mismatch (-want +got):\n%s", diff)
		}
	})
}

func drain(ch <-chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
