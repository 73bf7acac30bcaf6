package stats

import (
	"civicpulse/internal/rating/models"
)

// Aggregate summarizes the ledger. Histogram always holds every score from
// 1 to 5, with zero for scores nobody gave.
type Aggregate struct {
	Count     int64         `json:"count"`
	Mean      float64       `json:"mean"`
	Histogram map[int]int64 `json:"histogram"`
}

// FromCounts derives the aggregate from per-score counts. Mean is zero when
// there are no ratings.
func FromCounts(counts models.ScoreCounts) Aggregate {
	agg := Aggregate{Histogram: make(map[int]int64, models.MaxScore)}
	var sum float64
	for score := models.MinScore; score <= models.MaxScore; score++ {
		n := counts.Of(score)
		agg.Histogram[score] = n
		agg.Count += n
		sum += float64(score) * float64(n)
	}
	if agg.Count > 0 {
		agg.Mean = sum / float64(agg.Count)
	}
	return agg
}
