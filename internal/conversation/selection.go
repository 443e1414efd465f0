package conversation

import (
	"math/rand"
	"sort"

	"github.com/Jacfogel/MHM-sub009/internal/store"
)

const (
	// maxQuestions caps a check-in's length.
	maxQuestions = 8
	// fallbackQuestions caps the uniform fallback sample.
	fallbackQuestions = 6
)

// SelectQuestions picks and orders the questions for a new check-in. The
// weighting biases against questions asked in the last few check-ins and
// toward neglected categories; the final order is shuffled. When weighting
// cannot run, a uniform sample is used instead.
func SelectQuestions(rng *rand.Rand, enabled []string, categories map[string]string, records []store.CheckinRecord) []string {
	if len(enabled) == 0 {
		return nil
	}
	if order := weightedOrder(rng, enabled, categories, records); len(order) > 0 {
		return order
	}
	return uniformSample(rng, enabled, fallbackQuestions)
}

func weightedOrder(rng *rand.Rand, enabled []string, categories map[string]string, records []store.CheckinRecord) []string {
	if rng == nil || len(categories) == 0 {
		return nil
	}

	recent := recentlyAsked(records)
	categoryRecent := make(map[string]int)
	for key := range recent {
		if cat, ok := categories[key]; ok {
			categoryRecent[cat]++
		}
	}

	type weighted struct {
		key    string
		weight float64
	}
	pool := make([]weighted, 0, len(enabled))
	for _, key := range enabled {
		w := 1.0
		if recent[key] {
			w *= 0.3
		}
		switch n := categoryRecent[categories[key]]; {
		case n == 0:
			w *= 1.5
		case n >= 2:
			w *= 0.7
		}
		w *= 0.8 + rng.Float64()*0.4
		pool = append(pool, weighted{key: key, weight: w})
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].weight > pool[j].weight })

	n := min(len(pool), maxQuestions)
	order := make([]string, n)
	for i := 0; i < n; i++ {
		order[i] = pool[i].key
	}
	rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// recentlyAsked unions questions_asked over the most recent three payloads.
// Records arrive newest first.
func recentlyAsked(records []store.CheckinRecord) map[string]bool {
	recent := make(map[string]bool)
	limit := min(len(records), 3)
	for _, r := range records[:limit] {
		for _, key := range r.QuestionsAsked() {
			recent[key] = true
		}
	}
	return recent
}

func uniformSample(rng *rand.Rand, enabled []string, limit int) []string {
	n := min(len(enabled), limit)
	sample := make([]string, len(enabled))
	copy(sample, enabled)
	if rng != nil {
		rng.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
	}
	return sample[:n]
}
