package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pokemon TCG IDs look like "sv3pt5-1": set code, '-', collector number.
// The local store does not allow '-' in keys, so it is written as "__".
// A literal '_' is escaped as "_u" first, which keeps the mapping injective
// for every input string, not just the IDs the catalog produces today.
const (
	cardIDSeparator  = '-'
	keyEscape        = '_'
	keySeparatorCode = '_' // "__" -> '-'
	keyEscapeCode    = 'u' // "_u" -> '_'
)

var (
	// ErrMalformedCardKey is returned when a key was not produced by EncodeCardKey
	ErrMalformedCardKey = errors.New("malformed card key")
	// ErrCardKeyInvariant means a key and card ID disagree, which is a programming error
	ErrCardKeyInvariant = errors.New("card key does not round-trip to card id")
)

// EncodeCardKey maps a remote card ID to a store-safe key. Never fails.
func EncodeCardKey(cardID string) string {
	var b strings.Builder
	b.Grow(len(cardID) + 4)
	for _, r := range cardID {
		switch r {
		case cardIDSeparator:
			b.WriteRune(keyEscape)
			b.WriteRune(keySeparatorCode)
		case keyEscape:
			b.WriteRune(keyEscape)
			b.WriteRune(keyEscapeCode)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DecodeCardKey is the inverse of EncodeCardKey.
func DecodeCardKey(key string) (string, error) {
	var b strings.Builder
	b.Grow(len(key))
	runes := []rune(key)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == cardIDSeparator {
			return "", fmt.Errorf("%w: %q contains a raw separator", ErrMalformedCardKey, key)
		}
		if r != keyEscape {
			b.WriteRune(r)
			continue
		}
		if i+1 >= len(runes) {
			return "", fmt.Errorf("%w: %q ends with a dangling escape", ErrMalformedCardKey, key)
		}
		i++
		switch runes[i] {
		case keySeparatorCode:
			b.WriteRune(cardIDSeparator)
		case keyEscapeCode:
			b.WriteRune(keyEscape)
		default:
			return "", fmt.Errorf("%w: %q has unknown escape %q", ErrMalformedCardKey, key, runes[i])
		}
	}
	return b.String(), nil
}

// VerifyCardKey checks that key decodes to cardID and cardID encodes to key.
func VerifyCardKey(key, cardID string) error {
	decoded, err := DecodeCardKey(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCardKeyInvariant, err)
	}
	if decoded != cardID || EncodeCardKey(decoded) != key {
		return fmt.Errorf("%w: key %q, card id %q", ErrCardKeyInvariant, key, cardID)
	}
	return nil
}
