// Package entropy provides the deterministic random stream that drives all
// stochastic events in a simulation: initial draws, death draws, and
// replacement draws. One stream is owned by exactly one simulator and is
// never shared, so a seed fully determines every simulated history.
// See design doc Section 4.
package entropy

import (
	"math"
	"math/rand"
)

// Stream is a seeded pseudo-random source. Not safe for concurrent use;
// draws must be consumed in a fixed order to stay reproducible.
type Stream struct {
	rng *rand.Rand
}

// NewStream creates a stream seeded deterministically.
func NewStream(seed int64) *Stream {
	return &Stream{rng: rand.New(rand.NewSource(seed))}
}

// Float returns a uniform draw in [0, 1).
func (s *Stream) Float() float64 {
	return s.rng.Float64()
}

// Normal returns a standard normal draw.
func (s *Stream) Normal() float64 {
	return s.rng.NormFloat64()
}

// LogNormal returns exp(mean + std·Z) with Z standard normal. A draw is
// consumed even when std is zero, so the stream position after n calls
// depends only on n, not on the distribution parameters.
func (s *Stream) LogNormal(mean, std float64) float64 {
	z := s.rng.NormFloat64()
	return math.Exp(mean + std*z)
}
