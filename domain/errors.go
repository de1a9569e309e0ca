package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidOrder is returned when an order fails validation. The book is untouched.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotFound is returned when an order is not currently resting in the book.
	// Cancelling an already filled or already cancelled order reports this.
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateOrder is returned when an order ID is already resting.
	ErrDuplicateOrder = errors.New("duplicate order")

	// ErrBookInvariant marks an internal consistency fault. It is never a user error.
	ErrBookInvariant = errors.New("book invariant violation")
)

// InvariantViolation carries the diagnostic state captured when the book was found inconsistent.
type InvariantViolation struct {
	Reason  string
	BestBid string
	BestAsk string
	Detail  []string
}

func (v *InvariantViolation) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (best bid %s, best ask %s)", ErrBookInvariant, v.Reason, v.BestBid, v.BestAsk)
	if len(v.Detail) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(v.Detail, "; "))
	}
	return b.String()
}

func (v *InvariantViolation) Unwrap() error {
	return ErrBookInvariant
}
