package universe

import "errors"

// ErrExpectedSet is returned by a second SetExpected in one cycle.
var ErrExpectedSet = errors.New("universe: expected seed count already set")

// SeedState counts seed responses of one revision cycle. Expected is
// written once; Received only grows. Completion is reported exactly once.
type SeedState struct {
	Expected int
	Received int

	expectedSet bool
	completed   bool
}

// SetExpected fixes the number of responses to wait for and reports
// whether that already completes the cycle, which is the case for zero.
func (s *SeedState) SetExpected(n int) (bool, error) {
	if s.expectedSet {
		return false, ErrExpectedSet
	}
	s.Expected, s.expectedSet = n, true
	return s.tryComplete(), nil
}

// Receive counts one response and reports whether it completed the cycle.
func (s *SeedState) Receive() bool {
	s.Received++
	return s.tryComplete()
}

// Completed reports whether completion has fired.
func (s SeedState) Completed() bool { return s.completed }

// InFlight returns the number of responses still awaited.
func (s SeedState) InFlight() int {
	if !s.expectedSet || s.Received >= s.Expected {
		return 0
	}
	return s.Expected - s.Received
}

func (s *SeedState) tryComplete() bool {
	if s.completed || !s.expectedSet || s.Received < s.Expected {
		return false
	}
	s.completed = true
	return true
}
