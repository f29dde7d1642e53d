package game

import (
	"math/rand"
	"sync"
)

// lockedRand makes a *rand.Rand safe to share between room actors.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSource(seed int64) RandomSource {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
