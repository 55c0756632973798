package execpool

import "sync/atomic"

// TaskID identifies a single submission to a Pool.
type TaskID uint64

// IDGenerator hands out strictly increasing TaskID values, safe for
// concurrent use by any number of producers.
type IDGenerator struct {
	counter atomic.Uint64
}

// NewIDGenerator creates an IDGenerator whose first Next() call returns 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next TaskID in sequence.
func (g *IDGenerator) Next() TaskID {
	return TaskID(g.counter.Add(1))
}
