package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamStatus         = errors.New("upstream returned unsuccessful status")
	ErrMalformedPayload       = errors.New("malformed upstream payload")
	ErrValidation             = errors.New("record failed validation")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")

	ErrMatchNotFound  = errors.New("match not found")
	ErrPlayerNotFound = errors.New("player not found")
)

// Non-200 response from the upstream API
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %.500s", ErrUpstreamStatus.Error(), e.StatusCode, e.Body)
}

func (e *UpstreamStatusError) Unwrap() error {
	return ErrUpstreamStatus
}
