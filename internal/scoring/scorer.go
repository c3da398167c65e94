// Package scoring tracks how well each style category's synthetic emails
// land with the reviewer, on a 0-100 scale.
package scoring

const (
	// Initial is the score of a category with no reviews.
	Initial = 50.0
	Max     = 100.0
)

const baseWeight = 5.0

// RatingModifier scales a rejection by how close the rejected email was.
// A rating of 0-100 is expected; a missing rating counts as a full miss.
func RatingModifier(rating *int) float64 {
	if rating == nil {
		return 1.0
	}
	switch r := *rating; {
	case r <= 25:
		return 1.0
	case r <= 50:
		return 0.75
	case r <= 75:
		return 0.5
	default:
		return 0.25
	}
}

// Delta is the unclamped score change of one review.
//
// Degradation is asymmetric: rejections count 2x.
func Delta(approved bool, rating *int) float64 {
	if approved {
		return baseWeight
	}
	return -baseWeight * 2.0 * RatingModifier(rating)
}

// Update returns the score after one review.
func Update(current float64, approved bool, rating *int) float64 {
	return clamp(current + Delta(approved, rating))
}

// Tally is the running review record of one category.
type Tally struct {
	Score      float64
	Approvals  int
	Rejections int
}

// NewTally returns the starting record for an unreviewed category.
func NewTally() Tally {
	return Tally{Score: Initial}
}

// Record folds one review into the tally.
func (t Tally) Record(approved bool, rating *int) Tally {
	t.Score = Update(t.Score, approved, rating)
	if approved {
		t.Approvals++
	} else {
		t.Rejections++
	}
	return t
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > Max {
		return Max
	}
	return score
}
