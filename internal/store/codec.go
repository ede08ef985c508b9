package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/models"
)

// Documents carry __type__ discriminators so decoders can rebuild the
// concrete variant: "dataclass::Name" for structs, "enum::Name" for closed
// string types and "datetime" for timestamps. Decimal values are stored as
// strings to keep their exact representation.

const (
	typeKey             = "__type__"
	typeDatetime        = "datetime"
	typeTransactionType = "enum::TransactionType"
	typeDataOrigin      = "enum::DataOrigin"
)

var kindDocTypes = map[models.AccountKind]string{
	models.KindBankAccount:    "dataclass::BankAccountTransaction",
	models.KindBankCreditCard: "dataclass::BankCreditCardTransaction",
	models.KindLocalAccount:   "dataclass::LocalAccountTransaction",
}

func encodeDate(t time.Time) map[string]any {
	return map[string]any{
		typeKey: typeDatetime,
		"date":  t.Format(models.DateLayout),
	}
}

func decodeDate(node any) (time.Time, error) {
	doc, ok := node.(map[string]any)
	if !ok || doc[typeKey] != typeDatetime {
		return time.Time{}, fmt.Errorf("not a datetime document")
	}
	value, _ := doc["date"].(string)
	return time.Parse(models.DateLayout, value)
}

func encodeEnum(enumType, name string) map[string]any {
	return map[string]any{typeKey: enumType, "name": name}
}

func decodeEnum(node any, enumType string) (string, error) {
	doc, ok := node.(map[string]any)
	if !ok || doc[typeKey] != enumType {
		return "", fmt.Errorf("not a %s document", enumType)
	}
	name, _ := doc["name"].(string)
	return name, nil
}

func encodeSubject(subject models.Subject) map[string]any {
	switch s := subject.(type) {
	case models.Bank:
		return map[string]any{typeKey: "dataclass::Bank", "name": s.Name, "id": s.ID}
	case models.Account:
		return map[string]any{typeKey: "dataclass::Account", "name": s.Name, "number": s.Number}
	case models.LocalAccount:
		return map[string]any{typeKey: "dataclass::LocalAccount", "name": s.Name, "id": s.ID}
	case models.Card:
		return map[string]any{typeKey: "dataclass::Card", "name": s.Name, "number": s.Number}
	case models.Issuer:
		return map[string]any{typeKey: "dataclass::Issuer", "name": s.Name}
	case models.Recipient:
		return map[string]any{typeKey: "dataclass::Recipient", "name": s.Name}
	case models.Wallet:
		return map[string]any{typeKey: "dataclass::Wallet", "name": s.Name}
	case models.UnknownWallet:
		return map[string]any{typeKey: "dataclass::UnknownWallet"}
	default:
		return map[string]any{typeKey: "dataclass::UnknownSubject"}
	}
}

func decodeSubject(node any) (models.Subject, error) {
	if node == nil {
		return nil, nil
	}
	doc, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("not a subject document")
	}
	name, _ := doc["name"].(string)
	switch doc[typeKey] {
	case "dataclass::Bank":
		id, _ := doc["id"].(string)
		return models.Bank{Name: name, ID: id}, nil
	case "dataclass::Account":
		number, _ := doc["number"].(string)
		return models.Account{Name: name, Number: number}, nil
	case "dataclass::LocalAccount":
		id, _ := doc["id"].(string)
		return models.LocalAccount{Name: name, ID: id}, nil
	case "dataclass::Card":
		number, _ := doc["number"].(string)
		return models.Card{Name: name, Number: number}, nil
	case "dataclass::Issuer":
		return models.Issuer{Name: name}, nil
	case "dataclass::Recipient":
		return models.Recipient{Name: name}, nil
	case "dataclass::Wallet":
		return models.Wallet{Name: name}, nil
	case "dataclass::UnknownWallet":
		return models.UnknownWallet{}, nil
	case "dataclass::UnknownSubject":
		return models.UnknownSubject{}, nil
	}
	return nil, fmt.Errorf("unknown subject type %v", doc[typeKey])
}

func encodeFlags(flags models.ModifiedFlags) map[string]any {
	origin := func(o models.DataOrigin) map[string]any {
		return encodeEnum(typeDataOrigin, string(o))
	}
	return map[string]any{
		typeKey:       "dataclass::ModifiedFlags",
		"type":        origin(flags.Type),
		"source":      origin(flags.Source),
		"destination": origin(flags.Destination),
		"details":     origin(flags.Details),
		"comment":     origin(flags.Comment),
		"tags":        origin(flags.Tags),
		"category":    origin(flags.Category),
	}
}

func decodeFlags(node any) (models.ModifiedFlags, error) {
	flags := models.NewModifiedFlags()
	doc, ok := node.(map[string]any)
	if !ok {
		return flags, fmt.Errorf("not a flags document")
	}
	for field, target := range map[string]*models.DataOrigin{
		"type":        &flags.Type,
		"source":      &flags.Source,
		"destination": &flags.Destination,
		"details":     &flags.Details,
		"comment":     &flags.Comment,
		"tags":        &flags.Tags,
		"category":    &flags.Category,
	} {
		name, err := decodeEnum(doc[field], typeDataOrigin)
		if err != nil {
			return flags, fmt.Errorf("flag %s: %w", field, err)
		}
		*target = models.DataOrigin(name)
	}
	return flags, nil
}

func encodeStringList(values []string) []any {
	list := make([]any, len(values))
	for i, value := range values {
		list[i] = value
	}
	return list
}

func decodeStringList(node any) []string {
	list, ok := node.([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(list))
	for _, item := range list {
		if value, ok := item.(string); ok {
			values = append(values, value)
		}
	}
	return values
}

// EncodeTransaction renders a transaction as a store document.
func EncodeTransaction(tx *models.Transaction) map[string]any {
	doc := map[string]any{
		typeKey:            kindDocTypes[tx.Kind],
		"_id":              tx.DocID,
		"_seq":             tx.Seq,
		"transaction_id":   tx.TransactionID,
		"type":             encodeEnum(typeTransactionType, string(tx.Type)),
		"currency":         tx.Currency,
		"amount":           tx.Amount.String(),
		"value_date":       encodeDate(tx.ValueDate),
		"transaction_date": encodeDate(tx.TransactionDate),
		"source":           encodeSubject(tx.Source),
		"destination":      encodeSubject(tx.Destination),
		"comment":          tx.Comment,
		"keywords":         encodeStringList(tx.Keywords),
		"tags":             encodeStringList(tx.Tags),
		"flags":            encodeFlags(tx.Flags),
		"status_flags": map[string]any{
			typeKey:           "dataclass::StatusFlags",
			"invalid":         tx.StatusFlags.Invalid,
			"valid_duplicate": tx.StatusFlags.ValidDuplicate,
		},
	}

	if tx.HasBalance {
		doc["balance"] = tx.Balance.String()
	} else {
		doc["balance"] = nil
	}

	details := make(map[string]any, len(tx.Details))
	for key, value := range tx.Details {
		details[key] = value
	}
	doc["details"] = details

	if tx.Account != nil {
		doc["account"] = encodeSubject(*tx.Account)
	} else {
		doc["account"] = nil
	}
	if tx.Card != nil {
		doc["card"] = encodeSubject(*tx.Card)
	} else {
		doc["card"] = nil
	}
	if tx.Category != nil {
		doc["category"] = map[string]any{
			typeKey:     "dataclass::Category",
			"id":        tx.Category.ID,
			"name":      tx.Category.Name,
			"parent_id": tx.Category.ParentID,
		}
	} else {
		doc["category"] = nil
	}
	return doc
}

// DecodeTransaction rebuilds a transaction from a store document.
func DecodeTransaction(doc map[string]any) (*models.Transaction, error) {
	docType, _ := doc[typeKey].(string)
	var kind models.AccountKind
	for candidate, name := range kindDocTypes {
		if name == docType {
			kind = candidate
		}
	}
	if kind == "" {
		return nil, fmt.Errorf("unknown document type %q", docType)
	}

	tx := &models.Transaction{Kind: kind}
	tx.DocID, _ = doc["_id"].(string)
	// In-memory documents carry the sequence as an int, documents read back
	// from disk as a float64.
	switch seq := doc["_seq"].(type) {
	case int:
		tx.Seq = seq
	case int64:
		tx.Seq = int(seq)
	case float64:
		tx.Seq = int(seq)
	}
	tx.TransactionID, _ = doc["transaction_id"].(string)
	tx.Currency, _ = doc["currency"].(string)
	tx.Comment, _ = doc["comment"].(string)

	typeName, err := decodeEnum(doc["type"], typeTransactionType)
	if err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	tx.Type = models.TransactionType(typeName)

	amount, ok := doc["amount"].(string)
	if !ok {
		return nil, fmt.Errorf("missing amount")
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if balance, ok := doc["balance"].(string); ok {
		if tx.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		tx.HasBalance = true
	}

	if tx.ValueDate, err = decodeDate(doc["value_date"]); err != nil {
		return nil, fmt.Errorf("value_date: %w", err)
	}
	if tx.TransactionDate, err = decodeDate(doc["transaction_date"]); err != nil {
		return nil, fmt.Errorf("transaction_date: %w", err)
	}

	if tx.Source, err = decodeSubject(doc["source"]); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if tx.Destination, err = decodeSubject(doc["destination"]); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	if doc["account"] != nil {
		subject, err := decodeSubject(doc["account"])
		if err != nil {
			return nil, fmt.Errorf("account: %w", err)
		}
		switch account := subject.(type) {
		case models.Account:
			tx.Account = &account
		case models.LocalAccount:
			tx.Account = &models.Account{Name: account.Name, Number: account.ID}
		default:
			return nil, fmt.Errorf("account reference has wrong type")
		}
	}
	if doc["card"] != nil {
		subject, err := decodeSubject(doc["card"])
		if err != nil {
			return nil, fmt.Errorf("card: %w", err)
		}
		card, ok := subject.(models.Card)
		if !ok {
			return nil, fmt.Errorf("card reference has wrong type")
		}
		tx.Card = &card
	}

	if details, ok := doc["details"].(map[string]any); ok {
		tx.Details = make(map[string]string, len(details))
		for key, value := range details {
			if text, ok := value.(string); ok {
				tx.Details[key] = text
			}
		}
	}
	tx.Keywords = decodeStringList(doc["keywords"])
	tx.Tags = decodeStringList(doc["tags"])

	if category, ok := doc["category"].(map[string]any); ok {
		id, _ := category["id"].(string)
		name, _ := category["name"].(string)
		parent, _ := category["parent_id"].(string)
		tx.Category = &models.Category{ID: id, Name: name, ParentID: parent}
	}

	if tx.Flags, err = decodeFlags(doc["flags"]); err != nil {
		return nil, err
	}
	if status, ok := doc["status_flags"].(map[string]any); ok {
		tx.StatusFlags.Invalid, _ = status["invalid"].(bool)
		tx.StatusFlags.ValidDuplicate, _ = status["valid_duplicate"].(bool)
	}
	return tx, nil
}

// EncodeAccessCode renders an access code mailbox entry.
func EncodeAccessCode(accountID string, code models.AccessCode) map[string]any {
	return map[string]any{
		typeKey:      "dataclass::AccessCode",
		"account_id": accountID,
		"code":       code.Code,
		"date":       encodeDate(code.Date),
	}
}

// DecodeAccessCode rebuilds an access code mailbox entry.
func DecodeAccessCode(doc map[string]any) (models.AccessCode, error) {
	code, _ := doc["code"].(string)
	date, err := decodeDate(doc["date"])
	if err != nil {
		return models.AccessCode{}, fmt.Errorf("access code date: %w", err)
	}
	return models.AccessCode{Code: code, Date: date}, nil
}
