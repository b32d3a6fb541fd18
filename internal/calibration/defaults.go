// Package calibration bootstraps 3PL item parameters for questions that
// have never been calibrated.
package calibration

import (
	"math/rand/v2"
	"sync"

	"github.com/abhisek/catengine/internal/bank"
	"github.com/abhisek/catengine/internal/irt"
)

// Config bounds the random draws used for default parameters.
type Config struct {
	DiscriminationMin float64
	DiscriminationMax float64
	DifficultyJitter  float64
	GuessingMin       float64
	GuessingMax       float64
}

// DefaultConfig returns the bootstrap ranges.
func DefaultConfig() Config {
	return Config{
		DiscriminationMin: 0.8,
		DiscriminationMax: 1.2,
		DifficultyJitter:  0.2,
		GuessingMin:       0.20,
		GuessingMax:       0.25,
	}
}

// BaseDifficulty maps a coarse label to its centre on the logit scale.
// Unknown labels are treated as Medium.
func BaseDifficulty(label bank.Difficulty) float64 {
	switch label {
	case bank.DifficultyEasy:
		return -1.0
	case bank.DifficultyHard:
		return 1.0
	default:
		return 0.0
	}
}

// Bootstrapper draws label-derived default parameters. It is safe for
// concurrent use.
type Bootstrapper struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBootstrapper creates a Bootstrapper. A nil rng uses a randomly seeded
// source; tests pass a seeded one for reproducible draws.
func NewBootstrapper(cfg Config, rng *rand.Rand) *Bootstrapper {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Bootstrapper{cfg: cfg, rng: rng}
}

// Defaults returns fresh parameters for an item with the given label.
func (b *Bootstrapper) Defaults(label bank.Difficulty) irt.Params {
	b.mu.Lock()
	defer b.mu.Unlock()

	return irt.Params{
		A: b.uniform(b.cfg.DiscriminationMin, b.cfg.DiscriminationMax),
		B: BaseDifficulty(label) + b.uniform(-b.cfg.DifficultyJitter, b.cfg.DifficultyJitter),
		C: b.uniform(b.cfg.GuessingMin, b.cfg.GuessingMax),
	}
}

func (b *Bootstrapper) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + b.rng.Float64()*(hi-lo)
}
