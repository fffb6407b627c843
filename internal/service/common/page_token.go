package common

import (
	"encoding/base64"
	"fmt"

	apperrors "github.com/acme/sales-dialer/pkg/errors"
)

// EncodePageToken renders a storage paging state as an opaque URL-safe token.
// An exhausted listing yields the empty token.
func EncodePageToken(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// DecodePageToken reverses EncodePageToken. The empty token means first page.
func DecodePageToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, fmt.Sprintf("malformed page token: %v", err))
	}
	return data, nil
}
