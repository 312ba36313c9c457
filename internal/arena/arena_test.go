package arena

import "testing"

func TestAllocAndReclaim(t *testing.T) {
	a, err := New("test", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	block := a.Alloc(64)
	if block == nil {
		t.Fatal("expected non-nil allocation")
	}
	before := a.Used()

	a.Reclaim(block, 64)
	recycled := a.Alloc(64)
	if recycled == nil {
		t.Fatal("expected recycled allocation")
	}
	if a.Used() != before {
		t.Errorf("expected reclaimed alloc not to bump cursor further, used=%d before=%d", a.Used(), before)
	}
}

func TestResetKeepsCommitted(t *testing.T) {
	a, err := New("test-reset", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	a.Alloc(4096)
	committedBefore := a.Committed()

	a.Reset()
	if a.Used() != 0 {
		t.Errorf("expected used() == 0 after reset, got %d", a.Used())
	}
	if a.Committed() != committedBefore {
		t.Errorf("expected committed pages retained after reset")
	}
}

func TestStreamWriterDetectsNonContiguous(t *testing.T) {
	a, err := New("test-stream", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	w := a.BeginStream()
	if err := w.Write([]byte("hello ")); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Simulate an interleaved allocation from the same arena.
	a.Alloc(8)

	if err := w.Write([]byte("world")); err == nil {
		t.Fatal("expected non-contiguous write to fail")
	}
}

func TestAllocExceedingMaxCapacityFails(t *testing.T) {
	a, err := New("test-max", Options{MaxCapacity: 4096})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if got := a.Alloc(8192); got != nil {
		t.Errorf("expected nil allocation exceeding max capacity, got %d bytes", len(got))
	}
}
