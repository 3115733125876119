package crawler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports a detail page that lacks one of the required fields.
var ErrNotFound = errors.New("cart not found")

// ErrListingUnavailable reports a listing wave in which every page failed.
var ErrListingUnavailable = errors.New("listing unavailable")

// NotFoundError names the cart and the fields missing from its detail page.
type NotFoundError struct {
	ID     string
	Fields []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cart %s not found: missing %s", e.ID, strings.Join(e.Fields, ", "))
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PageFetchError is returned when a listing page could not be rendered within
// its retry budget.
type PageFetchError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("fetch listing page %d after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *PageFetchError) Unwrap() error {
	return e.Err
}
