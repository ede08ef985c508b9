package updater

import "fmt"

// RetryExhaustedError reports a scraping task that kept failing after every
// retry attempt.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("scraping failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// AccessCodeTimeoutError reports that no access code arrived in the mailbox
// before the polling window closed.
type AccessCodeTimeoutError struct {
	AccountID string
}

func (e *AccessCodeTimeoutError) Error() string {
	return fmt.Sprintf("no access code received for account %s", e.AccountID)
}
