package models

import "time"

// AccessCode is an out-of-band SMS code the bank sends during login. The
// API writes it into the store mailbox; the updater polls for it while a
// login waits.
type AccessCode struct {
	Code string
	Date time.Time
}
