package round

import "testing"

// TestSeedQueueLastWins verifies the one-slot overwrite semantics: enqueuing
// while a seed is already buffered replaces it, never grows a backlog.
func TestSeedQueueLastWins(t *testing.T) {
	q := NewSeedQueue()

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	if got := q.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}

	seed, ok := q.Drain()
	if !ok {
		t.Fatal("Drain() reported empty queue")
	}
	if seed != 3 {
		t.Errorf("Drain() = %d, want 3 (last enqueued)", seed)
	}

	if _, ok := q.Drain(); ok {
		t.Error("second Drain() should report empty")
	}
}

func TestSeedQueueClear(t *testing.T) {
	q := NewSeedQueue()
	q.Enqueue(42)
	q.Clear()

	if _, ok := q.Drain(); ok {
		t.Error("Drain() after Clear() should report empty")
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", got)
	}
}

func TestSeedQueueDrainEmpty(t *testing.T) {
	q := NewSeedQueue()
	if seed, ok := q.Drain(); ok {
		t.Errorf("Drain() on empty queue = (%d, true), want ok=false", seed)
	}
}
