package models

import (
	"regexp"
	"strings"
)

// BankConfig describes a banking provider the scraper can log into.
type BankConfig struct {
	ID       string
	Name     string
	Username string
	Password string
	Accounts []AccountConfig
}

// AccountConfig describes one account: either a provider-backed bank account
// or a locally managed one.
type AccountConfig struct {
	Type   AccountKind
	ID     string
	Name   string
	BankID string
	Cards  []CardConfig
}

// CardConfig describes a credit or debit card tied to an account.
type CardConfig struct {
	Type          string
	Name          string
	Number        string
	Owner         string
	Active        bool
	BankID        string
	AccountNumber string
}

// NotificationsConfig carries the delivery settings for operator
// notifications. The transport itself lives outside the core.
type NotificationsConfig struct {
	TelegramAPIKey string
	TelegramChatID string
}

// SchedulerConfig drives the periodic update runs.
type SchedulerConfig struct {
	// ScrappingHours are wall-clock HH:MM times at which a full update
	// is triggered.
	ScrappingHours []string
	// UpdateTimeoutSeconds is the minimum interval between two updates of
	// the same account or card.
	UpdateTimeoutSeconds int
}

// MatchesMaskedNumber reports whether a provider-supplied card number, which
// may mask middle digits with asterisks, refers to the configured number.
// Each asterisk stands for exactly one digit.
func MatchesMaskedNumber(masked, configured string) bool {
	if masked == configured {
		return true
	}
	pattern := regexp.QuoteMeta(masked)
	pattern = strings.ReplaceAll(pattern, `\*`, `\d`)
	re, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return false
	}
	return re.MatchString(configured)
}
