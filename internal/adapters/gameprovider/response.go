package gameprovider

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/matchsync/matchsync/internal/domain"
)

type gamesEnvelope struct {
	Games   *[]json.RawMessage `json:"games"`
	HasMore *bool              `json:"has_more"`
}

// Decode a page body. Known shapes are tried in order: a bare array of records, then an
// object holding the records under "games". Anything else is a malformed payload.
func DecodePage(data []byte) (PageResult, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return PageResult{}, fmt.Errorf("%w: empty body", domain.ErrMalformedPayload)
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return PageResult{}, fmt.Errorf("%w: invalid record array: %w", domain.ErrMalformedPayload, err)
		}
		return PageResult{Records: records}, nil
	case '{':
		var envelope gamesEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return PageResult{}, fmt.Errorf("%w: invalid envelope: %w", domain.ErrMalformedPayload, err)
		}
		if envelope.Games == nil {
			return PageResult{}, fmt.Errorf("%w: envelope has no games", domain.ErrMalformedPayload)
		}
		return PageResult{Records: *envelope.Games, HasMore: envelope.HasMore}, nil
	}

	return PageResult{}, fmt.Errorf("%w: unexpected body starting with %q", domain.ErrMalformedPayload, trimmed[0])
}
