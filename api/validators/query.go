package validators

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
)

// checkout references are issued by the payment provider (pi_..., cs_...)
var checkoutRefPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// ParseQueryInt reads an optional integer query parameter bounded by
// [min, max]. A missing or blank value yields defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a whole number").
			WithDetails(map[string]any{"field": key, "value": SanitizeString(raw, 32)})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "value": value, "min": min, "max": max})
	}
	return value, nil
}

// ParseCheckoutRef reads an optional payment intent or checkout session id.
// Blank values yield "", anything outside the provider's id alphabet is a
// validation error.
func ParseCheckoutRef(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", nil
	}
	if !checkoutRefPattern.MatchString(raw) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout reference").
			WithDetails(map[string]any{"field": key})
	}
	return raw, nil
}
