package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	id "civicpulse/pkg/domain"
	dErrors "civicpulse/pkg/domain-errors"
)

const (
	MinScore = 1
	MaxScore = 5

	// DefaultMaxCommentChars bounds a comment, counted in characters.
	DefaultMaxCommentChars = 2000
)

// Rating is a citizen's single approval rating. An empty Comment means none was given.
type Rating struct {
	UserID    id.UserID
	Score     int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasComment reports whether a comment was given.
func (r *Rating) HasComment() bool { return r.Comment != "" }

// SubmitResult tells whether a submission inserted a new rating.
type SubmitResult struct {
	Created bool
}

// ValidateScore checks the score is within [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return dErrors.Invalid(dErrors.ReasonInvalidScore,
			fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore))
	}
	return nil
}

// NormalizeComment trims surrounding whitespace and enforces the character ceiling.
func NormalizeComment(comment string, maxChars int) (string, error) {
	if !utf8.ValidString(comment) {
		return "", dErrors.Invalid(dErrors.ReasonInvalidPayload, "comment must be valid UTF-8")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxChars {
		return "", dErrors.Invalid(dErrors.ReasonCommentTooLong,
			fmt.Sprintf("comment must be at most %d characters", maxChars))
	}
	return comment, nil
}

// NewRating validates a submission and builds the rating written by an upsert.
// CreatedAt is provisional; stores keep the original on update.
func NewRating(userID id.UserID, score int, comment string, maxChars int, now time.Time) (*Rating, error) {
	if err := ValidateScore(score); err != nil {
		return nil, err
	}
	normalized, err := NormalizeComment(comment, maxChars)
	if err != nil {
		return nil, err
	}
	return &Rating{
		UserID:    userID,
		Score:     score,
		Comment:   normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ScoreCounts holds the number of ratings per score; index 0 is score 1.
type ScoreCounts [MaxScore]int64

// Add adjusts the count for score by delta. Out-of-range scores are ignored.
func (c *ScoreCounts) Add(score int, delta int64) {
	if score < MinScore || score > MaxScore {
		return
	}
	c[score-MinScore] += delta
}

// Of returns the count for score.
func (c ScoreCounts) Of(score int) int64 {
	if score < MinScore || score > MaxScore {
		return 0
	}
	return c[score-MinScore]
}
