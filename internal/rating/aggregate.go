package rating

const (
	MinScore = 1
	MaxScore = 10
)

func validScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// firstRatingAverage folds a user's first score for a dish into the current
// aggregate. An unrated dish (prior == 0) takes the score as is.
func firstRatingAverage(prior float64, score int) float64 {
	if prior == 0 {
		return float64(score)
	}
	return (prior + float64(score)) / 2
}

// recomputedAverage replaces oldScore with newScore in a set of count
// recorded ratings summing to sum.
func recomputedAverage(sum, count int64, oldScore, newScore int) float64 {
	if count <= 0 {
		return float64(newScore)
	}
	return float64(sum-int64(oldScore)+int64(newScore)) / float64(count)
}
