package scraper

import (
	"errors"
	"fmt"
)

// Category is the normalized upstream failure taxonomy.
type Category string

const (
	// CategoryNotFound: the entity does not exist on the registry. Terminal,
	// never cached, never retried.
	CategoryNotFound Category = "not_found"

	// CategoryParse: the response arrived but expected fields could not be
	// extracted, which usually means the upstream HTML/JSON structure drifted.
	// Terminal for this call; logged with diagnostics; never retried here.
	CategoryParse Category = "parse_error"

	// CategoryUpstream: network failure, timeout, or HTTP error status.
	// Retryable by caller policy; the client never retries internally.
	CategoryUpstream Category = "upstream_error"
)

// Error wraps upstream failures with normalized categorization.
type Error struct {
	Category  Category
	Op        string // which upstream call failed, e.g. "search", "company page"
	Message   string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scraper %s [%s]: %s: %v", e.Op, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("scraper %s [%s]: %s", e.Op, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a categorized scraper error. Only upstream failures are
// marked retryable.
func NewError(category Category, op, message string, err error) *Error {
	return &Error{
		Category:  category,
		Op:        op,
		Message:   message,
		Err:       err,
		Retryable: category == CategoryUpstream,
	}
}

// CategoryOf extracts the category from an error chain, defaulting to
// CategoryUpstream for unclassified failures.
func CategoryOf(err error) Category {
	var se *Error
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryUpstream
}

// IsNotFound reports whether err is a not-found scrape outcome.
func IsNotFound(err error) bool {
	return hasCategory(err, CategoryNotFound)
}

// IsParse reports whether err is a parse failure.
func IsParse(err error) bool {
	return hasCategory(err, CategoryParse)
}

// IsUpstream reports whether err is a network/HTTP failure.
func IsUpstream(err error) bool {
	return hasCategory(err, CategoryUpstream)
}

func hasCategory(err error, category Category) bool {
	var se *Error
	return errors.As(err, &se) && se.Category == category
}
