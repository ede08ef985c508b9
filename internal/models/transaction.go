package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical timestamp layout used everywhere a date is
// serialized: fingerprints, store documents and API payloads.
const DateLayout = "2006-01-02T15:04:05"

// ModifiedFlags records, per mutable field, who wrote it last. Parsers leave
// everything at OriginOriginal; every successful rule action flips its target
// field to OriginRules; user edits arriving through the API flip to
// OriginUser.
type ModifiedFlags struct {
	Type        DataOrigin
	Source      DataOrigin
	Destination DataOrigin
	Details     DataOrigin
	Comment     DataOrigin
	Tags        DataOrigin
	Category    DataOrigin
}

// NewModifiedFlags returns flags with every field marked as original.
func NewModifiedFlags() ModifiedFlags {
	return ModifiedFlags{
		Type:        OriginOriginal,
		Source:      OriginOriginal,
		Destination: OriginOriginal,
		Details:     OriginOriginal,
		Comment:     OriginOriginal,
		Tags:        OriginOriginal,
		Category:    OriginOriginal,
	}
}

// Set marks a field as written by the given origin. Unknown field names are
// ignored; the caller already validated the field path.
func (f *ModifiedFlags) Set(field string, origin DataOrigin) {
	switch field {
	case "type":
		f.Type = origin
	case "source":
		f.Source = origin
	case "destination":
		f.Destination = origin
	case "details":
		f.Details = origin
	case "comment":
		f.Comment = origin
	case "tags":
		f.Tags = origin
	case "category":
		f.Category = origin
	}
}

// StatusFlags qualify a transaction's participation in reconciliation.
// Invalid transactions never take part in fingerprint matching. A valid
// duplicate is deliberately retained despite sharing a fingerprint with
// another record and is skipped by FindMatching.
type StatusFlags struct {
	Invalid        bool
	ValidDuplicate bool
}

// Category is one node of the category tree. The tree is flat: walks go
// through the id -> Category table, there are no parent pointers.
type Category struct {
	ID       string
	Name     string
	ParentID string
}

// Transaction is the canonical record every provider payload is normalized
// into. Seq is assigned by the reconciler and is dense within the owning log.
type Transaction struct {
	// DocID is the store document identity. Assigned on insert, carried
	// through reads so updates and removes address the right document.
	// Not part of transaction equality.
	DocID         string
	Seq           int
	TransactionID string
	Kind          AccountKind
	Type          TransactionType
	Currency      string
	Amount        decimal.Decimal
	// Balance is the post-transaction balance. Only account transactions
	// carry one; HasBalance distinguishes a genuine zero from absence.
	Balance         decimal.Decimal
	HasBalance      bool
	ValueDate       time.Time
	TransactionDate time.Time
	Source          Subject
	Destination     Subject
	// Back-references to the owning wallet, by value. Exactly one of
	// Account or Card is set, depending on Kind.
	Account     *Account
	Card        *Card
	Details     map[string]string
	Keywords    []string
	Comment     string
	Category    *Category
	Tags        []string
	Flags       ModifiedFlags
	StatusFlags StatusFlags
}

// Direction derives the transaction direction from the amount sign.
func (t *Transaction) Direction() TransactionDirection {
	if t.Amount.IsNegative() {
		return DirectionCharge
	}
	return DirectionIncome
}

// AddTag appends a tag preserving insertion order; duplicates are ignored.
func (t *Transaction) AddTag(tag string) {
	for _, existing := range t.Tags {
		if existing == tag {
			return
		}
	}
	t.Tags = append(t.Tags, tag)
}

// Fingerprint is the matching key used by the reconciler to decide that a
// fetched and a stored transaction are the same entity. It is not an
// identity: valid duplicates share fingerprints on purpose. Account logs key
// on the post-transaction balance, credit card logs (which have none) key on
// the type instead.
func (t *Transaction) Fingerprint() string {
	if t.Kind == KindBankCreditCard {
		return fmt.Sprintf("%s %s %s %s",
			t.TransactionDate.Format(DateLayout),
			t.ValueDate.Format(DateLayout),
			t.Amount.String(),
			t.Type,
		)
	}
	return fmt.Sprintf("%s %s %s %s",
		t.TransactionDate.Format(DateLayout),
		t.ValueDate.Format(DateLayout),
		t.Amount.String(),
		t.Balance.String(),
	)
}

// Clone returns a deep copy. The rule engine mutates copies so the caller's
// transaction stays untouched until a rule pass succeeds.
func (t *Transaction) Clone() *Transaction {
	clone := *t
	if t.Details != nil {
		clone.Details = make(map[string]string, len(t.Details))
		for k, v := range t.Details {
			clone.Details[k] = v
		}
	}
	clone.Keywords = append([]string(nil), t.Keywords...)
	clone.Tags = append([]string(nil), t.Tags...)
	if t.Category != nil {
		category := *t.Category
		clone.Category = &category
	}
	if t.Account != nil {
		account := *t.Account
		clone.Account = &account
	}
	if t.Card != nil {
		card := *t.Card
		clone.Card = &card
	}
	return &clone
}

// Equal reports whether two transactions are identical in every field. The
// rule engine uses it to detect the fixed point between consecutive rounds.
func (t *Transaction) Equal(other *Transaction) bool {
	if other == nil {
		return false
	}
	if t.Seq != other.Seq ||
		t.TransactionID != other.TransactionID ||
		t.Kind != other.Kind ||
		t.Type != other.Type ||
		t.Currency != other.Currency ||
		!t.Amount.Equal(other.Amount) ||
		t.HasBalance != other.HasBalance ||
		!t.ValueDate.Equal(other.ValueDate) ||
		!t.TransactionDate.Equal(other.TransactionDate) ||
		t.Source != other.Source ||
		t.Destination != other.Destination ||
		t.Comment != other.Comment ||
		t.Flags != other.Flags ||
		t.StatusFlags != other.StatusFlags {
		return false
	}
	if t.HasBalance && !t.Balance.Equal(other.Balance) {
		return false
	}
	if !equalCategory(t.Category, other.Category) {
		return false
	}
	if !equalAccountRef(t.Account, other.Account) || !equalCardRef(t.Card, other.Card) {
		return false
	}
	if len(t.Details) != len(other.Details) {
		return false
	}
	for k, v := range t.Details {
		if other.Details[k] != v {
			return false
		}
	}
	return equalStrings(t.Keywords, other.Keywords) && equalStrings(t.Tags, other.Tags)
}

func equalCategory(a, b *Category) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalAccountRef(a, b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalCardRef(a, b *Card) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
