package handler

import (
	dErrors "civicpulse/pkg/domain-errors"
)

// SubmitRatingRequest is the body of PUT /ratings/me. Calificacion and
// Comentario are accepted for clients of the legacy portal.
type SubmitRatingRequest struct {
	Score        *int    `json:"score"`
	Comment      *string `json:"comment"`
	Calificacion *int    `json:"calificacion,omitempty"`
	Comentario   *string `json:"comentario,omitempty"`
}

// Normalize resolves legacy fields and requires a score.
func (r *SubmitRatingRequest) Normalize() (score int, comment string, err error) {
	s := r.Score
	if s == nil {
		s = r.Calificacion
	}
	if s == nil {
		return 0, "", dErrors.Invalid(dErrors.ReasonInvalidScore, "score is required")
	}
	c := r.Comment
	if c == nil {
		c = r.Comentario
	}
	if c != nil {
		comment = *c
	}
	return *s, comment, nil
}
