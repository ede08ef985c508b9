package store

import (
	"fmt"

	"banking/internal/models"
)

// DatabaseError signals a store-level failure: a broken invariant, an
// ambiguous match or an IO problem. Database errors abort the current batch
// but not peer update tasks.
type DatabaseError struct {
	Message string
	Err     error
}

func (e *DatabaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// DivergedHistoryError signals that a fetched batch contradicts the stored
// history in a way not explainable by appends at either end. It points at
// the stored transaction where the contradiction surfaced.
type DivergedHistoryError struct {
	Transaction *models.Transaction
	Extra       string
}

func (e *DivergedHistoryError) Error() string {
	source := "Unknown"
	destination := "Unknown"
	if e.Transaction.Source != nil && e.Transaction.Source.SubjectName() != "" {
		source = e.Transaction.Source.SubjectName()
	}
	if e.Transaction.Destination != nil && e.Transaction.Destination.SubjectName() != "" {
		destination = e.Transaction.Destination.SubjectName()
	}
	message := fmt.Sprintf("transaction history has diverged on %s, %q",
		e.Transaction.TransactionDate.Format("2006/01/02"),
		fmt.Sprintf("%s %s %s --> %s", e.Transaction.Type, e.Transaction.Amount.String(), source, destination),
	)
	if e.Extra != "" {
		message += ". " + e.Extra
	}
	return message
}
