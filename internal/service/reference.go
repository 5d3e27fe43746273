package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// The payment reference is the only channel for recovering checkout identity
// when the session store is empty (different tab, cleared storage). Format:
// checkout-<checkoutId>-<timestampMillis>.
var referencePattern = regexp.MustCompile(`^checkout-([^-]+)-(\d+)$`)

// ErrAmbiguousReference marks a reference that does not match the pattern,
// including the hyphenated-id case where the split would be guesswork.
var ErrAmbiguousReference = errors.New("payment reference does not match checkout-<id>-<millis>")

// ErrHyphenatedCheckoutID rejects ids the pattern cannot round-trip.
var ErrHyphenatedCheckoutID = errors.New("checkout id contains a hyphen")

// GenerateReference builds a fresh reference for one payment attempt.
// Hyphenated ids are encoded to base64 first so parsing stays unambiguous.
func GenerateReference(checkoutID string, now time.Time) (string, error) {
	if checkoutID == "" {
		return "", fmt.Errorf("empty checkout id")
	}
	if strings.Contains(checkoutID, "-") {
		return "", ErrHyphenatedCheckoutID
	}
	return fmt.Sprintf("checkout-%s-%d", checkoutID, now.UnixMilli()), nil
}

// GenerateReferenceSafe is GenerateReference with the encoding fallback
// applied: ids the plain format cannot carry, and ids the decode-first parse
// would mangle, are base64-encoded so ParseReference is the exact inverse.
func GenerateReferenceSafe(checkoutID string, now time.Time) (string, error) {
	if checkoutID == "" {
		return "", fmt.Errorf("empty checkout id")
	}
	if strings.Contains(checkoutID, "-") || decodesToText(checkoutID) {
		encoded := base64.StdEncoding.EncodeToString([]byte(checkoutID))
		return GenerateReference(encoded, now)
	}
	return GenerateReference(checkoutID, now)
}

// decodesToText reports whether the id is itself valid base64 for UTF-8
// text. Saleor global ids are (they encode "Type:pk"), so embedding one
// literally would make ParseReference return the decoded form instead of
// the id.
func decodesToText(id string) bool {
	decoded, err := base64.StdEncoding.DecodeString(id)
	return err == nil && utf8.Valid(decoded)
}

// ParseReference recovers the checkout id. The id segment is tried as base64
// first, falling back to the literal token when it does not decode.
func ParseReference(reference string) (string, error) {
	match := referencePattern.FindStringSubmatch(reference)
	if match == nil {
		return "", ErrAmbiguousReference
	}
	token := match[1]
	if decoded, err := base64.StdEncoding.DecodeString(token); err == nil && utf8.Valid(decoded) {
		return string(decoded), nil
	}
	return token, nil
}
