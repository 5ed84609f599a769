package utils

import "errors"

// Workflow error taxonomy. Callers classify with errors.Is; the messages
// wrapped around these carry the offending ids/quantities.
var (
	// ErrNotFound covers both a missing row and a row outside the caller's
	// organization scope. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when a ticket state change is not an
	// edge of the workflow table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInsufficientStock is returned before anything is written when an
	// outbound movement asks for more than the on-hand quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPaymentIncomplete blocks delivery of a ticket that is not fully paid.
	ErrPaymentIncomplete = errors.New("payment incomplete")

	// ErrPaymentExceedsBalance rejects a payment larger than the sale's
	// remaining balance.
	ErrPaymentExceedsBalance = errors.New("payment amount exceeds remaining balance")

	// ErrSequenceGeneration is returned after the folio retry budget is spent.
	ErrSequenceGeneration = errors.New("failed to generate folio after retries")

	// ErrConcurrencyConflict surfaces a lost optimistic race: a conditional
	// write matched no row because a concurrent writer got there first.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
