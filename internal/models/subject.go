package models

// Subject is a participant on either end of a transaction. It is a closed
// sum type: the concrete variants below are the only implementations.
// Named participants expose their display name through SubjectName; the
// unknown variants return the empty string.
type Subject interface {
	SubjectName() string
	isSubject()
}

// Bank is the banking entity itself, e.g. the destination of a commission.
type Bank struct {
	Name string
	ID   string
}

// Account is one of the user's bank accounts.
type Account struct {
	Name   string
	Number string
}

// LocalAccount is a manually managed account with no banking provider.
type LocalAccount struct {
	Name string
	ID   string
}

// Card is one of the user's credit or debit cards.
type Card struct {
	Name   string
	Number string
}

// Issuer is a named external party that sent money.
type Issuer struct {
	Name string
}

// Recipient is a named external party that received money.
type Recipient struct {
	Name string
}

// Wallet is a named cash destination, e.g. a concrete ATM.
type Wallet struct {
	Name string
}

// UnknownSubject stands in for a named participant the provider did not
// identify.
type UnknownSubject struct{}

// UnknownWallet stands in for an unidentified cash destination (ATM
// withdrawals).
type UnknownWallet struct{}

func (s Bank) SubjectName() string           { return s.Name }
func (s Account) SubjectName() string        { return s.Name }
func (s LocalAccount) SubjectName() string   { return s.Name }
func (s Card) SubjectName() string           { return s.Name }
func (s Issuer) SubjectName() string         { return s.Name }
func (s Recipient) SubjectName() string      { return s.Name }
func (s Wallet) SubjectName() string         { return s.Name }
func (s UnknownSubject) SubjectName() string { return "" }
func (s UnknownWallet) SubjectName() string  { return "" }

func (Bank) isSubject()           {}
func (Account) isSubject()        {}
func (LocalAccount) isSubject()   {}
func (Card) isSubject()           {}
func (Issuer) isSubject()         {}
func (Recipient) isSubject()      {}
func (Wallet) isSubject()         {}
func (UnknownSubject) isSubject() {}
func (UnknownWallet) isSubject()  {}

// AccountFromConfig builds the Account subject for a configured account.
func AccountFromConfig(cfg AccountConfig) Account {
	return Account{Name: cfg.Name, Number: cfg.ID}
}

// BankFromConfig builds the Bank subject for a configured bank.
func BankFromConfig(cfg BankConfig) Bank {
	return Bank{Name: cfg.Name, ID: cfg.ID}
}

// CardFromConfig builds the Card subject for a configured card.
func CardFromConfig(cfg CardConfig) Card {
	return Card{Name: cfg.Name, Number: cfg.Number}
}

// LocalAccountFromConfig builds the LocalAccount subject for a configured
// local account.
func LocalAccountFromConfig(cfg AccountConfig) LocalAccount {
	return LocalAccount{Name: cfg.Name, ID: cfg.ID}
}
