package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEnrollmentCopiesTemplate(t *testing.T) {
	template := []byte{1, 2, 3}
	e := NewEnrollment("citizen-1", template, time.Unix(10, 0))

	template[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, e.Template)
	assert.Len(t, e.Fingerprint, 64)
}

func TestFingerprintIsStableAndDistinct(t *testing.T) {
	assert.Equal(t, Fingerprint([]byte("a")), Fingerprint([]byte("a")))
	assert.NotEqual(t, Fingerprint([]byte("a")), Fingerprint([]byte("b")))
}

func TestStatusOf(t *testing.T) {
	assert.False(t, StatusOf(nil).Active())
	assert.Equal(t, StatusAbsent, StatusOf(nil).Status)

	at := time.Unix(100, 0)
	status := StatusOf(NewEnrollment("citizen-1", []byte("x"), at))
	assert.True(t, status.Active())
	assert.Equal(t, at, status.EnrolledAt)
	assert.Equal(t, Fingerprint([]byte("x")), status.Fingerprint)
}
