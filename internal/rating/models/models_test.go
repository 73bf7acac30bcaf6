package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civicpulse/pkg/domain-errors"
)

func TestValidateScoreBounds(t *testing.T) {
	for _, score := range []int{0, 6, -1} {
		err := ValidateScore(score)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "score %d", score)
		assert.Equal(t, dErrors.ReasonInvalidScore, dErrors.ReasonOf(err))
	}
	for score := MinScore; score <= MaxScore; score++ {
		assert.NoError(t, ValidateScore(score))
	}
}

func TestNormalizeCommentCountsCharacters(t *testing.T) {
	// 5 characters, 10 bytes
	comment, err := NormalizeComment("  ñandú  ", 5)
	require.NoError(t, err)
	assert.Equal(t, "ñandú", comment)

	_, err = NormalizeComment(strings.Repeat("é", 6), 5)
	assert.Equal(t, dErrors.ReasonCommentTooLong, dErrors.ReasonOf(err))
}

func TestNormalizeCommentRejectsInvalidUTF8(t *testing.T) {
	_, err := NormalizeComment(string([]byte{0xff, 0xfe}), 10)
	assert.Equal(t, dErrors.ReasonInvalidPayload, dErrors.ReasonOf(err))
}

func TestNewRatingStampsBothTimes(t *testing.T) {
	now := time.Unix(42, 0)
	r, err := NewRating("citizen-1", 4, "", DefaultMaxCommentChars, now)
	require.NoError(t, err)
	assert.Equal(t, now, r.CreatedAt)
	assert.Equal(t, now, r.UpdatedAt)
	assert.False(t, r.HasComment())
}

func TestScoreCounts(t *testing.T) {
	var c ScoreCounts
	c.Add(5, 2)
	c.Add(3, 1)
	c.Add(3, -1)
	c.Add(9, 1)

	assert.Equal(t, int64(2), c.Of(5))
	assert.Equal(t, int64(0), c.Of(3))
	assert.Equal(t, int64(0), c.Of(9))
}
