// Package bankiaparser decodes raw Bankia portal records. Bankia encodes
// amounts as signed integers with a separate decimal-places field and keys
// its free-text references by a template code.
package bankiaparser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/parser"
	"banking/internal/rawjson"
	"banking/internal/textutils"
)

// BankID is the provider identifier used in configuration files.
const BankID = "bankia"

// keywordFields are the reference descriptions that feed keyword extraction,
// in addition to any string-valued detail.
var keywordFields = []string{
	"conceptoMovimiento.descripcionConcepto",
	"referencias.0300.descripcion",
	"referencias.0400.descripcion",
	"referencias.0440.descripcion",
	"referencias.0500.descripcion",
	"referencias.0503.descripcion",
}

// Parser implements parser.Provider for Bankia.
type Parser struct {
	log logging.Logger
}

// New creates a Bankia parser. A nil logger falls back to the default text
// logger.
func New(log logging.Logger) *Parser {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &Parser{log: log}
}

// Opcode groups, straight from the portal's movement codes.
var (
	paycheckCodes     = []string{"105"}
	transferCodes     = []string{"163", "203", "603", "673"}
	commissionCodes   = []string{"205", "275", "578"}
	receiptCodes      = []string{"253", "257", "261"}
	mortgageCodes     = []string{"255"}
	creditCardInvoice = []string{"274", "400"}
	purchaseCodes     = []string{"800", "410", "226", "127"}
)

func in(code string, group []string) bool {
	for _, candidate := range group {
		if code == candidate {
			return true
		}
	}
	return false
}

// ClassifyType maps a Bankia movement code and a direction onto the
// canonical type. Codes outside the table, and known codes scraped with a
// direction they cannot have, classify as unknown.
func ClassifyType(code string, direction models.TransactionDirection) models.TransactionType {
	charge := direction == models.DirectionCharge

	switch {
	case in(code, paycheckCodes):
		if !charge {
			return models.TypeReceivedTransfer
		}
	case in(code, commissionCodes):
		if charge {
			return models.TypeBankCommission
		}
		return models.TypeBankCommissionReturn
	case in(code, receiptCodes):
		if charge {
			return models.TypeDomiciledReceipt
		}
	case in(code, mortgageCodes):
		// A special case of domiciled receipt where the destination is
		// the bank itself.
		if charge {
			return models.TypeMortgageReceipt
		}
	case in(code, creditCardInvoice):
		if charge {
			return models.TypeCreditCardInvoice
		}
		return models.TypeCreditCardInvoicePayment
	case in(code, purchaseCodes):
		if charge {
			return models.TypePurchase
		}
		return models.TypePurchaseReturn
	case in(code, transferCodes):
		if charge {
			return models.TypeIssuedTransfer
		}
		return models.TypeReceivedTransfer
	}
	return models.TypeUnknown
}

// decodeAmount reads Bankia's integer-with-decimals encoding:
// {importeConSigno: -1250, numeroDecimales: 2} means -12.50.
func decodeAmount(raw rawjson.Document, path string) (decimal.Decimal, error) {
	node := rawjson.GetNested(raw, path)
	if node == nil {
		return decimal.Zero, fmt.Errorf("missing amount node %q", path)
	}
	if value, ok := rawjson.GetNumber(node, "importeConSigno"); ok {
		places, _ := rawjson.GetNumber(node, "numeroDecimales")
		return decimal.New(int64(value), -int32(places)), nil
	}
	if value, ok := rawjson.GetNumber(node, "importe"); ok {
		places, _ := rawjson.GetNumber(node, "decimales")
		return decimal.New(int64(value), -int32(places)), nil
	}
	return decimal.Zero, fmt.Errorf("amount node %q has no known encoding", path)
}

// rekeyReferences indexes the "referencias" list by template code so detail
// paths like "referencias.0300.descripcion" resolve.
func rekeyReferences(raw rawjson.Document) {
	list, ok := raw["referencias"].([]any)
	if !ok {
		return
	}
	byCode := make(map[string]any, len(list))
	for _, item := range list {
		reference, ok := item.(map[string]any)
		if !ok {
			continue
		}
		code, ok := reference["codigoPlantilla"].(string)
		if !ok || code == "" {
			continue
		}
		fields := make(map[string]any, len(reference))
		for key, value := range reference {
			if key != "codigoPlantilla" {
				fields[key] = value
			}
		}
		byCode[code] = fields
	}
	raw["referencias"] = byCode
}

// decodeDate parses Bankia's ISO date, optionally combined with a separate
// HH:MM:SS time-of-day value.
func decodeDate(date, hour string) (time.Time, error) {
	day := strings.SplitN(date, "T", 2)[0]
	parsed, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, err
	}
	if hour == "" {
		return parsed, nil
	}
	clock, err := time.Parse("15:04:05", hour)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC), nil
}

func accountDetailSpecs(txType models.TransactionType) []parser.DetailSpec {
	switch txType {
	case models.TypePurchase, models.TypePurchaseReturn:
		return []parser.DetailSpec{
			{Key: "shop_name", Path: "referencias.0440.descripcion", Title: true},
			{Key: "card_number", Path: "referencias.0240.descripcion"},
		}
	case models.TypeIssuedTransfer:
		return []parser.DetailSpec{
			{Key: "beneficiary", Path: "beneficiarioOEmisor", Title: true},
			{Key: "beneficiary", Path: "referencias.0500.descripcion", Title: true},
			{Key: "concept", Path: "referencias.0300.descripcion"},
		}
	case models.TypeReceivedTransfer:
		return []parser.DetailSpec{
			{Key: "issuer_name", Path: "beneficiarioOEmisor"},
			{Key: "concept", Path: "referencias.0300.descripcion", Title: true},
		}
	case models.TypeDomiciledReceipt, models.TypeMortgageReceipt, models.TypeReturnDeposit:
		return []parser.DetailSpec{
			{Key: "creditor_name", Path: "referencias.0400.descripcion"},
			{Key: "concept", Path: "referencias.0300.descripcion", Title: true},
			{Key: "drawee", Path: "referencias.0503.descripcion", Title: true},
		}
	}
	return nil
}

func cardDetailSpecs(txType models.TransactionType) []parser.DetailSpec {
	switch txType {
	case models.TypePurchase, models.TypePurchaseReturn:
		return []parser.DetailSpec{
			{Key: "shop_name", Path: "lugarMovimiento", Title: true},
		}
	}
	return nil
}

// lookupCard resolves a provider-masked card number against the configured
// cards of the account. Numbers with no configured match still produce a
// card so the transaction keeps its wallet reference.
func lookupCard(account models.AccountConfig, cardNumber string) *models.Card {
	if cardNumber == "" {
		return nil
	}
	for _, cfg := range account.Cards {
		if models.MatchesMaskedNumber(cardNumber, cfg.Number) {
			card := models.CardFromConfig(cfg)
			return &card
		}
	}
	// Possibly an old card no longer registered.
	return &models.Card{Name: "Unknown card", Number: cardNumber}
}

func safeIssuer(name string) models.Subject {
	if name == "" {
		return models.UnknownSubject{}
	}
	return models.Issuer{Name: name}
}

func safeRecipient(name string) models.Subject {
	if name == "" {
		return models.UnknownSubject{}
	}
	return models.Recipient{Name: name}
}

// subjectFor resolves the source and destination of a classified
// transaction. wallet is the account subject for account logs and the card
// subject for credit card logs.
func subjects(details map[string]string, txType models.TransactionType, wallet models.Subject, bank models.Bank) (models.Subject, models.Subject) {
	switch txType {
	case models.TypeReceivedTransfer:
		return safeIssuer(details["issuer_name"]), wallet
	case models.TypeReturnDeposit:
		return safeIssuer(details["creditor_name"]), wallet
	case models.TypePurchaseReturn:
		return safeIssuer(details["shop_name"]), wallet
	case models.TypeBankCommissionReturn:
		return bank, wallet
	case models.TypeATMWithdrawal:
		return wallet, models.UnknownWallet{}
	case models.TypeIssuedTransfer:
		return wallet, safeRecipient(details["beneficiary"])
	case models.TypeDomiciledReceipt:
		return wallet, safeRecipient(details["creditor_name"])
	case models.TypePurchase:
		return wallet, safeRecipient(details["shop_name"])
	case models.TypeCreditCardInvoice, models.TypeCreditCardInvoicePayment,
		models.TypeMortgageReceipt, models.TypeBankCommission:
		return wallet, bank
	}
	return models.UnknownSubject{}, models.UnknownSubject{}
}

func comment(details map[string]string, txType models.TransactionType) string {
	switch txType {
	case models.TypeIssuedTransfer, models.TypeReceivedTransfer:
		return details["concept"]
	}
	return ""
}

func keywords(raw rawjson.Document, details map[string]string) []string {
	literals := parser.ExtractLiterals(raw, keywordFields)
	literals = append(literals, parser.DetailLiterals(details)...)
	return textutils.ExtractKeywords(literals)
}

// ParseAccountTransaction decodes one raw account movement.
func (p *Parser) ParseAccountTransaction(bank models.BankConfig, account models.AccountConfig, raw rawjson.Document) (*models.Transaction, error) {
	amount, err := decodeAmount(raw, "importe")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "importe", Err: err}
	}
	balance, err := decodeAmount(raw, "saldoPosterior")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "saldoPosterior", Err: err}
	}
	currency, ok := rawjson.GetString(raw, "importe.moneda.nombreCorto")
	if !ok {
		return nil, &parser.ParseError{Provider: BankID, Field: "importe.moneda.nombreCorto"}
	}

	rekeyReferences(raw)

	code := movementCode(raw, "codigoMovimiento")
	direction := models.DirectionCharge
	if !amount.IsNegative() {
		direction = models.DirectionIncome
	}
	txType := ClassifyType(code, direction)

	details := parser.ExtractDetails(raw, accountDetailSpecs(txType))
	card := lookupCard(account, details["card_number"])
	delete(details, "card_number")

	valueDate, err := decodeValueDates(raw, "fechaValor.valor", "")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "fechaValor", Err: err}
	}
	txDate, err := decodeValueDates(raw, "fechaMovimiento.valor", "")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "fechaMovimiento", Err: err}
	}

	accountSubject := models.AccountFromConfig(account)
	source, destination := subjects(details, txType, accountSubject, models.BankFromConfig(bank))

	return &models.Transaction{
		Kind:            models.KindBankAccount,
		Type:            txType,
		Currency:        currency,
		Amount:          amount,
		Balance:         balance,
		HasBalance:      true,
		ValueDate:       valueDate,
		TransactionDate: txDate,
		Source:          source,
		Destination:     destination,
		Account:         &accountSubject,
		Card:            card,
		Details:         details,
		Keywords:        keywords(raw, details),
		Comment:         comment(details, txType),
		Flags:           models.NewModifiedFlags(),
	}, nil
}

// ParseCreditCardTransaction decodes one raw card movement. Card movements
// arrive while scraping a concrete card, so the wallet reference comes from
// configuration rather than from the payload. Non-consolidated and debit
// movements are kept but flagged invalid: they never participate in
// matching.
func (p *Parser) ParseCreditCardTransaction(bank models.BankConfig, account models.AccountConfig, card models.CardConfig, raw rawjson.Document) (*models.Transaction, error) {
	amount, err := decodeAmount(raw, "importeMovimiento")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "importeMovimiento", Err: err}
	}
	currency, ok := rawjson.GetString(raw, "importeMovimiento.nombreMoneda")
	if !ok {
		return nil, &parser.ParseError{Provider: BankID, Field: "importeMovimiento.nombreMoneda"}
	}

	code := movementCode(raw, "claveMovimiento")
	direction := models.DirectionCharge
	if !amount.IsNegative() {
		direction = models.DirectionIncome
	}
	txType := ClassifyType(code, direction)

	details := parser.ExtractDetails(raw, cardDetailSpecs(txType))

	date, hour := "", ""
	if value, ok := rawjson.GetString(raw, "fechaMovimiento.valor"); ok {
		date = value
	}
	if value, ok := rawjson.GetString(raw, "horaMovimiento.valor"); ok {
		hour = value
	}
	when, err := decodeDate(date, hour)
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "fechaMovimiento", Err: err}
	}

	cardSubject := models.CardFromConfig(card)
	source, destination := subjects(details, txType, cardSubject, models.BankFromConfig(bank))

	transactionID, _ := rawjson.GetString(raw, "identificadorMovimiento")
	state, _ := rawjson.GetString(raw, "situacionMovimiento.valor")
	invalid := state == "NO CONSOLIDADO" || state == "DEBITO"
	if invalid {
		p.log.Debug("Flagging non-consolidated card movement as invalid",
			logging.Field{Key: logging.FieldCard, Value: card.Number},
			logging.Field{Key: logging.FieldAmount, Value: amount.String()})
	}

	return &models.Transaction{
		TransactionID:   transactionID,
		Kind:            models.KindBankCreditCard,
		Type:            txType,
		Currency:        currency,
		Amount:          amount,
		ValueDate:       when,
		TransactionDate: when,
		Source:          source,
		Destination:     destination,
		Card:            &cardSubject,
		Details:         details,
		Keywords:        keywords(raw, details),
		Comment:         comment(details, txType),
		Flags:           models.NewModifiedFlags(),
		StatusFlags:     models.StatusFlags{Invalid: invalid},
	}, nil
}

// movementCode tolerates the portal sending codes either as strings or as
// bare numbers.
func movementCode(raw rawjson.Document, path string) string {
	if code, ok := rawjson.GetString(raw, path); ok {
		return code
	}
	if number, ok := rawjson.GetNumber(raw, path); ok {
		return strconv.Itoa(int(number))
	}
	return ""
}

func decodeValueDates(raw rawjson.Document, datePath, hourPath string) (time.Time, error) {
	date, ok := rawjson.GetString(raw, datePath)
	if !ok {
		return time.Time{}, fmt.Errorf("missing date %q", datePath)
	}
	hour := ""
	if hourPath != "" {
		hour, _ = rawjson.GetString(raw, hourPath)
	}
	return decodeDate(date, hour)
}
