package engine

import "sync/atomic"

// sequence hands out increasing numbers starting at 1. The agent numbers
// ticks with one and the event ledger keeps one per event name.
type sequence struct {
	n atomic.Int64
}

func (s *sequence) next() int64 {
	return s.n.Add(1)
}

// last returns the most recent number handed out, or 0.
func (s *sequence) last() int64 {
	return s.n.Load()
}
