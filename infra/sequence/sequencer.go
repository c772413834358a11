package sequence

import "sync/atomic"

// Sequencer hands out strictly monotonic command sequence numbers.
// Every command written to the entry WAL carries one; replay and snapshot
// truncation rely on them never repeating.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose last issued value is start.
// Fresh start: 0. After snapshot load or WAL replay: the last applied seq.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
