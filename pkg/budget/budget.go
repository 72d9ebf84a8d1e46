// Package budget computes per-node execution ceilings from hierarchy rank.
package budget

import "time"

// Limits bounds one reasoning-engine invocation. Exceeding either ceiling
// is reported as a cancellation, not a fatal failure.
type Limits struct {
	MaxIterations int
	MaxTime       time.Duration
}

// Policy scales limits affinely with rank: senior nodes coordinate more
// children and get more room, junior nodes are bounded tightly.
type Policy struct {
	BaseIterations    int
	IterationsPerRank int
	BaseTime          time.Duration
	TimePerRank       time.Duration
}

// Default mirrors the ceilings the runtime has always used.
var Default = Policy{
	BaseIterations:    5,
	IterationsPerRank: 10,
	BaseTime:          60 * time.Second,
	TimePerRank:       200 * time.Second,
}

// ForRank computes the limits for a node of the given rank. Negative
// ranks are clamped to zero.
func (p Policy) ForRank(rank int) Limits {
	if rank < 0 {
		rank = 0
	}
	return Limits{
		MaxIterations: p.BaseIterations + rank*p.IterationsPerRank,
		MaxTime:       p.BaseTime + time.Duration(rank)*p.TimePerRank,
	}
}
