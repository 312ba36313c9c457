package arena

import "fmt"

// StreamWriter accumulates unaligned, contiguous writes via BumpAlloc. If
// any other allocation interleaves with a write (detected by the next
// BumpAlloc not landing exactly where expected), Write fails instead of
// silently producing a block with a gap in it.
type StreamWriter struct {
	arena   *Arena
	start   int
	written int
	failed  bool
}

// BeginStream opens a new stream over a. The caller must not call Alloc,
// BumpAlloc, or start another stream on a until Finish or Abandon.
func (a *Arena) BeginStream() *StreamWriter {
	return &StreamWriter{arena: a, start: a.cur}
}

// Write appends data to the stream. Returns an error if a non-contiguous
// allocation is detected, at which point the stream is no longer usable.
func (w *StreamWriter) Write(data []byte) error {
	if w.failed {
		return fmt.Errorf("arena: stream writer already failed")
	}
	dest := w.arena.BumpAlloc(len(data))
	if dest == nil {
		w.failed = true
		return fmt.Errorf("arena: stream writer allocation failed")
	}
	if w.written > 0 {
		expected := w.start + w.written
		got := w.arena.offsetOf(dest)
		if got != expected {
			w.failed = true
			w.arena.log.WithFields(map[string]interface{}{
				"expected": expected,
				"actual":   got,
			}).Warn("arena: stream writer detected non-contiguous allocation")
			return fmt.Errorf("arena: non-contiguous allocation, expected offset %d got %d", expected, got)
		}
	}
	copy(dest, data)
	w.written += len(data)
	return nil
}

// Size returns the number of bytes written so far.
func (w *StreamWriter) Size() int { return w.written }

// Finish returns the contiguous block written so far.
func (w *StreamWriter) Finish() ([]byte, error) {
	if w.failed {
		return nil, fmt.Errorf("arena: stream writer failed, nothing to finish")
	}
	return w.arena.mem[w.start : w.start+w.written], nil
}

// Abandon rewinds the arena's bump cursor back to where the stream began,
// discarding everything written.
func (w *StreamWriter) Abandon() {
	w.arena.cur = w.start
	w.written = 0
}
