// Package scraper defines the contract between the updater and the headless
// browser sessions that fetch raw transaction documents from each provider's
// online banking site.
package scraper

import (
	"context"
	"fmt"
	"time"

	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/rawjson"
)

// Options control a scraping session.
type Options struct {
	Headless     bool
	CloseBrowser bool

	// AccessCode is called when the provider asks for a one-time access
	// code during login.
	AccessCode func(ctx context.Context) (string, error)
}

// Scraper drives one provider's online banking site and returns the raw
// transaction documents for the requested date window, in the shape the
// provider parser for the same bank expects.
type Scraper interface {
	FetchAccount(ctx context.Context, bank models.BankConfig, account models.AccountConfig, from, to time.Time) ([]rawjson.Document, error)
	FetchCreditCard(ctx context.Context, bank models.BankConfig, account models.AccountConfig, card models.CardConfig, from, to time.Time) ([]rawjson.Document, error)
}

// Factory builds a scraper session for one bank. The updater calls it once
// per update task.
type Factory func(bank models.BankConfig, opts Options, log logging.Logger) (Scraper, error)

// InteractionError reports a session that failed while driving the
// provider's site. These failures are transient and worth retrying.
type InteractionError struct {
	Provider string
	Message  string
	Err      error
}

func (e *InteractionError) Error() string {
	msg := fmt.Sprintf("scraping %s failed: %s", e.Provider, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InteractionError) Unwrap() error {
	return e.Err
}
