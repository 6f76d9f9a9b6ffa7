// Package chance is the single source of randomness for speaker selection,
// fallback line choice and ritual outcomes. Callers take a Source so tests can
// drive them with a Scripted sequence.
package chance

import (
	"math/rand/v2"
	"sync"
)

// Source yields random numbers. Implementations must be safe for concurrent
// use.
type Source interface {
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

type locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a Source seeded with seed.
func New(seed uint64) Source {
	return &locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Default returns a Source seeded from the runtime's entropy.
func Default() Source {
	return New(rand.Uint64())
}

func (l *locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Between returns an integer in [lo, hi] inclusive.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Pick returns a uniformly chosen element of items. It panics on an empty
// slice.
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}

// Scripted replays fixed values. Ints are reduced modulo n; both sequences
// wrap around when exhausted. An empty sequence yields zeros.
type Scripted struct {
	mu     sync.Mutex
	Ints   []int
	Floats []float64
	i, f   int
}

func (s *Scripted) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[s.i%len(s.Ints)]
	s.i++
	if v < 0 {
		v = -v
	}
	return v % n
}

func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.f%len(s.Floats)]
	s.f++
	return v
}
