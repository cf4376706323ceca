package app

import "math/rand"

// shuffleIDs returns a uniform permutation of ids using Fisher–Yates.
// The input slice is left untouched.
func shuffleIDs(rnd *rand.Rand, ids []int64) []int64 {
	shuffled := make([]int64, len(ids))
	copy(shuffled, ids)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}
