package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition marks an item whose readiness flags violate stage ordering.
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrMissingID marks an item without a fingerprint.
	ErrMissingID = errors.New("item id is required")
)

func invalidTransition(id, reason string) error {
	return fmt.Errorf("%w: item %s: %s", ErrInvalidTransition, id, reason)
}
