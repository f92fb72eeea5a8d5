package validators

import (
	"net/url"
	"strings"
	"unicode"

	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
)

// MaxProductIDLength bounds product ids accepted from paths and bodies.
const MaxProductIDLength = 128

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// ProductID cleans a product id taken from a URL path segment. Escaped
// slashes are decoded; control characters and over-long ids are rejected
// rather than truncated, since a shortened id would address another line.
func ProductID(raw string) (string, error) {
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	case len(id) > MaxProductIDLength:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is too long").
			WithDetails(map[string]any{"max": MaxProductIDLength})
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id contains control characters")
	}
	return id, nil
}
