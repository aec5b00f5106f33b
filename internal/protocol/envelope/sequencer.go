package envelope

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers.
type Sequencer struct {
	last atomic.Int32
}

// NewSequencer returns a sequencer whose first Next is start.
func NewSequencer(start int32) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start - 1)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() int32 { return s.last.Add(1) }

// Last returns the most recently issued number.
func (s *Sequencer) Last() int32 { return s.last.Load() }
