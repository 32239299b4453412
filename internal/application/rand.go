package application

import (
	"math/rand"
	"time"
)

// Rand is the randomness source consumed by selection, shuffling and
// degradation. *math/rand.Rand satisfies it; tests inject a seeded
// instance to drive draws deterministically.
type Rand interface {
	Intn(n int) int
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a time-seeded source for production use.
func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewSeededRand returns a deterministic source for tests.
func NewSeededRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}
