package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxIndexNameLength is the longest index name the backend accepts.
const MaxIndexNameLength = 10

// ErrInvalidIndexName is returned for names the backend would reject.
var ErrInvalidIndexName = errors.New("index name must be 1-10 lowercase characters")

// ValidateIndexName applies the backend's naming rule locally so that a bad
// name fails before anything is sent.
func ValidateIndexName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > MaxIndexNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidIndexName, name)
	}

	hasLetter := false
	for _, r := range name {
		if unicode.IsUpper(r) {
			return fmt.Errorf("%w: %q", ErrInvalidIndexName, name)
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("%w: %q", ErrInvalidIndexName, name)
	}
	return nil
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
