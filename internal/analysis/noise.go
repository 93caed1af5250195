package analysis

import (
	"math/rand"
	"sync"
)

// Noise is a seedable source of the small random perturbations the scorer
// and forecaster add to avoid boundary flapping. A nil *Noise contributes
// nothing, which keeps tests deterministic.
type Noise struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewNoise creates a noise source from the given seed.
func NewNoise(seed int64) *Noise {
	return &Noise{rng: rand.New(rand.NewSource(seed))}
}

// Jitter returns a value in [-0.4*amplitude, +0.6*amplitude), slightly biased
// upward so borderline readings lean toward being flagged.
func (n *Noise) Jitter(amplitude float64) float64 {
	if n == nil {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return (n.rng.Float64() - 0.4) * amplitude
}

// Range returns a uniform value in [min, max).
func (n *Noise) Range(min, max float64) float64 {
	if n == nil {
		return 0
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return min + n.rng.Float64()*(max-min)
}
