// Package rng provides the pluggable uniform random source used by every
// probabilistic engine transition, plus a scripted source for tests.
package rng

import (
	"math/rand/v2"
	"sync"
)

// Source produces uniform samples in [0, 1).
type Source interface {
	Float64() float64
}

// New returns a PCG-backed source. The same seed replays the same draws.
func New(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// IntN maps one sample from src onto [0, n). n must be positive.
func IntN(src Source, n int) int {
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Sequence replays a fixed list of samples, cycling when exhausted. It is
// safe for concurrent use.
type Sequence struct {
	mu      sync.Mutex
	samples []float64
	next    int
	draws   int
}

// NewSequence creates a scripted source. With no samples it always yields
// 0.999999, which fails every chance check.
func NewSequence(samples ...float64) *Sequence {
	return &Sequence{samples: samples}
}

// Float64 returns the next scripted sample.
func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	if len(s.samples) == 0 {
		return 0.999999
	}
	v := s.samples[s.next%len(s.samples)]
	s.next++
	return v
}

// Push appends samples to the script.
func (s *Sequence) Push(samples ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
}

// Draws returns how many samples have been consumed.
func (s *Sequence) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}
