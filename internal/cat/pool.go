package cat

import (
	"math/rand/v2"

	"github.com/abhisek/catengine/internal/store"
)

// buildPool orders candidates into three tiers: never seen, last answered
// incorrectly, everything else. Each tier is shuffled independently.
func buildPool(candidates []string, history map[string]store.QuestionStatus, rng *rand.Rand) []string {
	var unseen, missed, seen []string
	for _, id := range candidates {
		st, ok := history[id]
		switch {
		case !ok || st.Attempts == 0:
			unseen = append(unseen, id)
		case !st.LastCorrect:
			missed = append(missed, id)
		default:
			seen = append(seen, id)
		}
	}

	pool := make([]string, 0, len(candidates))
	for _, tier := range [][]string{unseen, missed, seen} {
		rng.Shuffle(len(tier), func(i, j int) { tier[i], tier[j] = tier[j], tier[i] })
		pool = append(pool, tier...)
	}
	return pool
}
