package quiz

import (
	"math/rand"
	"time"
)

// newRand returns a generator seeded from the clock.
func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Shuffle permutes s in place with Fisher-Yates. Every ordering is equally
// likely.
func Shuffle[T any](r *rand.Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
