package engine

import (
	"math/rand"
	"time"
)

// Source is the slice of math/rand the combat code needs. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewRNG returns a generator seeded with seed, or with the wall clock when seed is 0.
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Variance rolls a multiplier uniformly in [1-spread, 1+spread).
func Variance(r Source, spread float64) float64 {
	if spread <= 0 {
		return 1
	}
	if spread > 1 {
		spread = 1
	}
	return 1 + (r.Float64()*2-1)*spread
}

// Fixed is a Source that replays the given values in order and then repeats the last one.
// Handy for pinning rolls in tests and replays.
type Fixed struct {
	vals []float64
	i    int
}

func NewFixed(vals ...float64) *Fixed {
	if len(vals) == 0 {
		vals = []float64{0.5}
	}
	return &Fixed{vals: vals}
}

func (f *Fixed) Float64() float64 {
	v := f.vals[f.i]
	if f.i < len(f.vals)-1 {
		f.i++
	}
	return v
}
