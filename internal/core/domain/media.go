package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURL parses a base64 "data:<mime>;base64,<payload>" upload as
// sent by the browser client. maxBytes <= 0 disables the size check.
func DecodeDataURL(s string, maxBytes int64) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: prefix", ErrInvalidMedia)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing payload", ErrInvalidMedia)
	}
	contentType, ok := strings.CutSuffix(header, ";base64")
	if !ok || !strings.Contains(contentType, "/") {
		return nil, "", fmt.Errorf("%w: expected <mime>;base64 header", ErrInvalidMedia)
	}

	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+2 {
		return nil, "", ErrMediaTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", ErrMediaTooLarge
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidMedia)
	}
	return data, strings.ToLower(contentType), nil
}
