package models

import (
	"strings"

	dErrors "orglens/pkg/domain-errors"
)

// KeyKind tags the variant of a lookup key.
type KeyKind string

const (
	KeyINN  KeyKind = "inn"  // taxpayer identification number
	KeyOGRN KeyKind = "ogrn" // state registration number
	KeyName KeyKind = "name" // free-text name query
)

// LookupKey is a validated, canonical lookup key. Construct via the Parse
// functions; invalid keys never reach the coordinator.
type LookupKey struct {
	Kind  KeyKind
	Value string
}

// String renders the key in "kind:value" form, used as the single-flight and
// cache index key.
func (k LookupKey) String() string {
	return string(k.Kind) + ":" + k.Value
}

// IsZero reports whether the key is unset.
func (k LookupKey) IsZero() bool {
	return k.Kind == "" && k.Value == ""
}

// ParseINN normalizes and validates a taxpayer identification number.
// Whitespace and non-digit characters are stripped; the result must be 10 or
// 12 digits. Check-digit validation is the registry's concern, not ours.
func ParseINN(raw string) (LookupKey, error) {
	digits := stripNonDigits(raw)
	if len(digits) != 10 && len(digits) != 12 {
		return LookupKey{}, dErrors.New(dErrors.CodeBadRequest, "INN must contain 10 or 12 digits")
	}
	return LookupKey{Kind: KeyINN, Value: digits}, nil
}

// ParseOGRN normalizes and validates a state registration number (13 digits
// for legal entities, 15 for sole proprietors).
func ParseOGRN(raw string) (LookupKey, error) {
	digits := stripNonDigits(raw)
	if len(digits) != 13 && len(digits) != 15 {
		return LookupKey{}, dErrors.New(dErrors.CodeBadRequest, "OGRN must contain 13 or 15 digits")
	}
	return LookupKey{Kind: KeyOGRN, Value: digits}, nil
}

// ParseNameQuery canonicalizes a free-text name query: trimmed, internal
// whitespace collapsed, lowercased. Empty results are rejected.
func ParseNameQuery(raw string) (LookupKey, error) {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if collapsed == "" {
		return LookupKey{}, dErrors.New(dErrors.CodeBadRequest, "search query must not be empty")
	}
	return LookupKey{Kind: KeyName, Value: strings.ToLower(collapsed)}, nil
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
