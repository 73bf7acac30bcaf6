package handler

import (
	"strconv"
	"time"

	"civicpulse/internal/rating/models"
	"civicpulse/internal/rating/stats"
)

type RatingResponse struct {
	Score     int       `json:"score"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetRatingResponse wraps the caller's rating; Rating is null when absent.
type GetRatingResponse struct {
	Rating *RatingResponse `json:"rating"`
}

type SubmitRatingResponse struct {
	Created bool `json:"created"`
}

// StatsResponse keys the histogram by score as a string, "1" through "5".
type StatsResponse struct {
	Count     int64            `json:"count"`
	Mean      float64          `json:"mean"`
	Histogram map[string]int64 `json:"histogram"`
}

func toRatingResponse(r *models.Rating) GetRatingResponse {
	if r == nil {
		return GetRatingResponse{}
	}
	resp := &RatingResponse{
		Score:     r.Score,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.HasComment() {
		comment := r.Comment
		resp.Comment = &comment
	}
	return GetRatingResponse{Rating: resp}
}

func toStatsResponse(agg stats.Aggregate) StatsResponse {
	histogram := make(map[string]int64, models.MaxScore)
	for score := models.MinScore; score <= models.MaxScore; score++ {
		histogram[strconv.Itoa(score)] = agg.Histogram[score]
	}
	return StatsResponse{
		Count:     agg.Count,
		Mean:      agg.Mean,
		Histogram: histogram,
	}
}
