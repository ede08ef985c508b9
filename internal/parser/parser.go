// Package parser defines the provider parser contract and the helpers shared
// by every provider implementation.
package parser

import (
	"time"

	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/rawjson"
)

// Provider converts one bank's raw scraped records into canonical
// transactions. Implementations are pure: identical input and configuration
// produce identical output.
type Provider interface {
	// ParseAccountTransaction decodes one raw account record. A nil
	// transaction with a non-nil error marks a structurally unusable
	// record; callers drop it and continue the scan.
	ParseAccountTransaction(bank models.BankConfig, account models.AccountConfig, raw rawjson.Document) (*models.Transaction, error)

	// ParseCreditCardTransaction decodes one raw credit card record.
	ParseCreditCardTransaction(bank models.BankConfig, account models.AccountConfig, card models.CardConfig, raw rawjson.Document) (*models.Transaction, error)
}

// ParseAccountBatch runs a batch of raw account records through the
// provider, dropping records the provider rejects.
func ParseAccountBatch(p Provider, log logging.Logger, bank models.BankConfig, account models.AccountConfig, raws []rawjson.Document) []*models.Transaction {
	parsed := make([]*models.Transaction, 0, len(raws))
	for _, raw := range raws {
		tx, err := p.ParseAccountTransaction(bank, account, raw)
		if err != nil {
			log.WithError(err).Warn("Dropping unparseable account record")
			continue
		}
		parsed = append(parsed, tx)
	}
	return parsed
}

// ParseCreditCardBatch runs a batch of raw credit card records through the
// provider, dropping records the provider rejects.
func ParseCreditCardBatch(p Provider, log logging.Logger, bank models.BankConfig, account models.AccountConfig, card models.CardConfig, raws []rawjson.Document) []*models.Transaction {
	parsed := make([]*models.Transaction, 0, len(raws))
	for _, raw := range raws {
		tx, err := p.ParseCreditCardTransaction(bank, account, card, raw)
		if err != nil {
			log.WithError(err).Warn("Dropping unparseable credit card record")
			continue
		}
		parsed = append(parsed, tx)
	}
	return parsed
}

// FilterWindow keeps the transactions whose transaction date falls inside
// [from, to]. Providers routinely return records outside the requested
// window; the pipeline discards them before rules run.
func FilterWindow(transactions []*models.Transaction, from, to time.Time) []*models.Transaction {
	filtered := make([]*models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.TransactionDate.Before(from) || tx.TransactionDate.After(to) {
			continue
		}
		filtered = append(filtered, tx)
	}
	return filtered
}
