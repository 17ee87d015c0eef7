package scclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJWTPayload base64url-decodes and JSON-parses the payload segment
// of a compact JWT (header.payload.signature). It does not verify the
// signature; cryptographic verification, if wanted, is the caller's
// responsibility.
func decodeJWTPayload(token string) (json.RawMessage, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("scclient: malformed JWT: expected 3 dot-separated parts, got %d", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("scclient: malformed JWT payload: %w", err)
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("scclient: JWT payload is not valid JSON: %w", err)
	}

	return json.RawMessage(payload), nil
}
