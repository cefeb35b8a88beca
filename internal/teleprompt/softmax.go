package teleprompt

import (
	"math"
	"math/rand"
)

// SoftmaxSample draws an index from scores with probability
// proportional to exp(score/temperature), using rng. Two edge cases:
// temperature == 0 returns the argmax (ties broken by earliest
// index), and an all-underflow distribution falls back to a uniform
// draw instead of always returning the last index.
func SoftmaxSample(rng *rand.Rand, scores []float64, temperature float64) int {
	if len(scores) == 0 {
		panic("softmax sample: scores cannot be empty")
	}
	if temperature == 0 {
		return argmax(scores)
	}

	maxScore := scores[0]
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	weights := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		weights[i] = math.Exp((s - maxScore) / temperature)
		sum += weights[i]
	}

	if sum == 0 {
		return rng.Intn(len(scores))
	}

	probs := make([]float64, len(weights))
	for i, w := range weights {
		probs[i] = w / sum
	}
	return sampleCategorical(rng, probs)
}

func argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

func sampleCategorical(rng *rand.Rand, probs []float64) int {
	r := rng.Float64()
	cumulative := 0.0
	for i, p := range probs {
		cumulative += p
		if r <= cumulative {
			return i
		}
	}
	return len(probs) - 1
}
