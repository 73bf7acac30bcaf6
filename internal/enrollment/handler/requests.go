package handler

import (
	"encoding/base64"
	"strings"

	dErrors "civicpulse/pkg/domain-errors"
)

// RegisterEnrollmentRequest carries the captured template as base64 or as a
// data URL ("data:image/jpeg;base64,..."). Foto is accepted for clients of
// the legacy portal.
type RegisterEnrollmentRequest struct {
	Template string `json:"template"`
	Foto     string `json:"foto,omitempty"`
}

func (r *RegisterEnrollmentRequest) payload() string {
	if strings.TrimSpace(r.Template) != "" {
		return r.Template
	}
	return r.Foto
}

// VerifyEnrollmentRequest carries a probe sample in the same encodings.
type VerifyEnrollmentRequest struct {
	Probe string `json:"probe"`
}

// DecodePayload returns the bytes of a base64 string or base64 data URL.
func DecodePayload(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, dErrors.Invalid(dErrors.ReasonInvalidPayload, "payload must not be empty")
	}
	if strings.HasPrefix(raw, "data:") {
		header, data, ok := strings.Cut(raw, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, dErrors.Invalid(dErrors.ReasonInvalidPayload, "data URL must be base64 encoded")
		}
		raw = data
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, dErrors.Invalid(dErrors.ReasonInvalidPayload, "payload is not valid base64")
	}
	if len(decoded) == 0 {
		return nil, dErrors.Invalid(dErrors.ReasonInvalidPayload, "payload must not be empty")
	}
	return decoded, nil
}
