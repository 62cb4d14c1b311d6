// Package importer pulls comments from social media posts and runs each one
// through the moderation pipeline.
package importer

import (
	"errors"
	"strings"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// ErrorCodeInvalidURL marks post URLs without a /p/ or /reel/ segment.
const ErrorCodeInvalidURL domain.ErrorCode = "invalid_url"

func invalidURLError() *domain.APIError {
	return domain.ErrInvalidRequest("Invalid Instagram URL. Must contain /p/ or /reel/").
		WithCode(ErrorCodeInvalidURL)
}

// IsInvalidURL reports whether err rejects a post URL.
func IsInvalidURL(err error) bool {
	var apiErr *domain.APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrorCodeInvalidURL
}

// ParseShortcode extracts the post shortcode from an Instagram post or reel URL.
func ParseShortcode(postURL string) (string, error) {
	for _, marker := range []string{"/p/", "/reel/"} {
		_, rest, ok := strings.Cut(postURL, marker)
		if !ok {
			continue
		}
		code, _, _ := strings.Cut(rest, "/")
		if i := strings.IndexAny(code, "?#"); i >= 0 {
			code = code[:i]
		}
		if code != "" {
			return code, nil
		}
	}
	return "", invalidURLError()
}
