package ladder

import "math"

const (
	MinRating = 500
	MaxRating = 3000
)

// ExpectedScore is the Elo win expectation of own against opponent.
func ExpectedScore(own, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-own)/400))
}

// RatingChange rounds K * (actual - expected).
func RatingChange(own, opponent, actual float64, kFactor int) int {
	return int(math.Round(float64(kFactor) * (actual - ExpectedScore(own, opponent))))
}

// TeamRatingChange holds the outcome of a doubles (or singles) rating update.
type TeamRatingChange struct {
	Side1Change    int
	Side2Change    int
	Side1AvgRating float64
	Side2AvgRating float64
	Side1Actual    float64
	Side2Actual    float64
}

// TeamChange rates two sides by their average rating. The actual score is
// the share of games each side won, so a 6-4 result is worth 0.6.
func TeamChange(side1, side2 []int, side1Score, side2Score, kFactor int) TeamRatingChange {
	avg1, avg2 := average(side1), average(side2)
	total := side1Score + side2Score

	var actual1, actual2 float64
	if total > 0 {
		actual1 = float64(side1Score) / float64(total)
		actual2 = float64(side2Score) / float64(total)
	} else {
		actual1, actual2 = 0.5, 0.5
	}

	return TeamRatingChange{
		Side1Change:    RatingChange(avg1, avg2, actual1, kFactor),
		Side2Change:    RatingChange(avg2, avg1, actual2, kFactor),
		Side1AvgRating: avg1,
		Side2AvgRating: avg2,
		Side1Actual:    actual1,
		Side2Actual:    actual2,
	}
}

// ClampRating keeps a rating inside [MinRating, MaxRating].
func ClampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

func average(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}
