package state

import (
	"fmt"
	"testing"
)

var benchDate = "2023-03-07 10:15:00"

func benchEntry(i int) (string, Entry) {
	e := Entry{Name: fmt.Sprintf("return-%d.eml", i)}
	if i%4 != 0 {
		e.Date = &benchDate
	}
	return fmt.Sprintf("hash-%d", i), e
}

func populate(b *testing.B, tr Tracker, n int) {
	b.Helper()
	for i := 0; i < n; i++ {
		hash, e := benchEntry(i)
		if err := tr.Record(hash, e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTracker_Record(b *testing.B) {
	b.Run("memory", func(b *testing.B) {
		populate(b, NewMemoryTracker(), b.N)
	})

	for _, flushEvery := range []int{0, 100} {
		b.Run(fmt.Sprintf("file/flush=%d", flushEvery), func(b *testing.B) {
			tracker, err := NewFileTracker(b.TempDir(), true)
			if err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				hash, e := benchEntry(i)
				if err := tracker.Record(hash, e); err != nil {
					b.Fatal(err)
				}
				if flushEvery > 0 && i%flushEvery == 0 {
					if err := tracker.Flush(); err != nil {
						b.Fatal(err)
					}
				}
			}
			b.StopTimer()
			if err := tracker.Close(); err != nil {
				b.Fatal(err)
			}
		})
	}
}

func BenchmarkFileTracker_Lookup(b *testing.B) {
	tracker, err := NewFileTracker(b.TempDir(), false)
	if err != nil {
		b.Fatal(err)
	}
	populate(b, tracker, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tracker.Lookup(fmt.Sprintf("hash-%d", i%2000))
	}
}

// Reload cost dominates start-up time for large document trees.
func BenchmarkFileTracker_Load(b *testing.B) {
	dir := b.TempDir()
	tracker, err := NewFileTracker(dir, true)
	if err != nil {
		b.Fatal(err)
	}
	populate(b, tracker, 10000)
	if err := tracker.Close(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reloaded, err := NewFileTracker(dir, false)
		if err != nil {
			b.Fatal(err)
		}
		if got := reloaded.Snapshot().Processed; got != 10000 {
			b.Fatalf("Processed = %d, want 10000", got)
		}
	}
}
