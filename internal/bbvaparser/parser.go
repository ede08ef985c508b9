// Package bbvaparser decodes raw BBVA portal records. Unlike Bankia, BBVA
// sends plain float amounts and scatters the same fact across several
// alternative payload paths, so most details carry fallback specs.
package bbvaparser

import (
	"fmt"
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
const BankID = "bbva"

// detailSpecs resolve against every movement; specs sharing a key act as
// ordered fallbacks.
var detailSpecs = []parser.DetailSpec{
	{Key: "transaction_type", Path: "scheme.subCategory.id"},
	{Key: "sender_account_number", Path: "wireTransactionDetail.sender.account.formats.ccc"},
	{Key: "sender_name", Path: "wireTransactionDetail.sender.person.name"},
	{Key: "receiver_name", Path: "wireTransactionDetail.receiver.person.name"},
	{Key: "shop_name", Path: "shop.name"},
	{Key: "shop_name", Path: "cardTransactionDetail.shop.name"},
	{Key: "shop_name", Path: "humanConceptName"},
	{Key: "card_number", Path: "origin.panCode"},
	{Key: "card_number", Path: "origin.detailSourceKey", Regex: `(\d+)`},
	{Key: "creditor_name", Path: "billTransactionDetail.creditor.name"},
	{Key: "creditor_name", Path: "humanConceptName"},
	{Key: "description", Path: "humanExtendedConceptName"},
	{Key: "receipt_concept", Path: "billTransactionDetail.extendedBillConceptName"},
	{Key: "receipt_concept", Path: "extendedName"},
	{Key: "return_reason", Path: "billTransactionDetail.extendedIntentionName"},
}

// literalFields feed keyword extraction.
var literalFields = []string{
	"name",
	"humanConceptName",
	"concept.name",
	"extendedName",
	"humanExtendedConceptName",
	"cardTransactionDetail.concept.name",
	"cardTransactionDetail.concept.shop.name",
	"wireTransactionDetail.sender.person.name",
}

// Subcategory codes observed on the portal. 0054 ("OTROS") only shows up on
// cash dispositions, so it classifies as a withdrawal.
var (
	paycheckCodes   = []string{"0114"}
	purchaseCodes   = []string{"0017"}
	transferCodes   = []string{"0149", "0064"}
	withdrawalCodes = []string{"0054", "0022"}
	receiptCodes    = []string{"0058", "0140"}
	ccInvoiceCodes  = []string{"0060"}
)

// Parser implements parser.Provider for BBVA.
type Parser struct {
	log logging.Logger
}

// New creates a BBVA parser. A nil logger falls back to the default text
// logger.
func New(log logging.Logger) *Parser {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	return &Parser{log: log}
}

func in(code string, group []string) bool {
	for _, candidate := range group {
		if code == candidate {
			return true
		}
	}
	return false
}

// ClassifyType maps a BBVA subcategory code and a direction onto the
// canonical type. Codes outside the table, and known codes with a direction
// they cannot have, classify as unknown.
func ClassifyType(code string, direction models.TransactionDirection) models.TransactionType {
	charge := direction == models.DirectionCharge

	switch {
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
	case in(code, paycheckCodes):
		if !charge {
			return models.TypeReceivedTransfer
		}
	case in(code, withdrawalCodes):
		if charge {
			return models.TypeATMWithdrawal
		}
	case in(code, receiptCodes):
		if charge {
			return models.TypeDomiciledReceipt
		}
		return models.TypeReturnDeposit
	case in(code, ccInvoiceCodes):
		if charge {
			return models.TypeCreditCardInvoice
		}
		return models.TypeCreditCardInvoicePayment
	}
	return models.TypeUnknown
}

func decodeAmount(raw rawjson.Document, path string) (decimal.Decimal, error) {
	value, ok := rawjson.GetNumber(raw, path)
	if !ok {
		return decimal.Zero, fmt.Errorf("missing amount %q", path)
	}
	return decimal.NewFromFloat(value).Round(2), nil
}

func decodeDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.SplitN(value, "T", 2)[0])
}

// lookupCard resolves the purchase card number against the configured cards
// of the account. BBVA sends full card numbers, so the match is exact.
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
	return models.Issuer{Name: parser.TitleCase(name)}
}

func safeRecipient(name string) models.Subject {
	if name == "" {
		return models.UnknownSubject{}
	}
	return models.Recipient{Name: parser.TitleCase(name)}
}

// subjects resolves source and destination. wallet is the account subject
// for account movements. Purchases and withdrawals involve the card instead,
// falling back to the wallet when no card could be resolved.
func subjects(details map[string]string, txType models.TransactionType, wallet models.Subject, card *models.Card, bank models.Bank) (models.Subject, models.Subject) {
	cardOrWallet := wallet
	if card != nil {
		cardOrWallet = *card
	}

	switch txType {
	case models.TypeReceivedTransfer:
		return safeIssuer(details["sender_name"]), wallet
	case models.TypeReturnDeposit:
		return safeIssuer(details["creditor_name"]), wallet
	case models.TypePurchaseReturn:
		return safeIssuer(details["shop_name"]), cardOrWallet
	case models.TypeBankCommissionReturn:
		return bank, wallet
	case models.TypeATMWithdrawal:
		return wallet, cardOrWallet
	case models.TypeIssuedTransfer:
		return wallet, safeRecipient(details["receiver_name"])
	case models.TypeDomiciledReceipt:
		return wallet, safeRecipient(details["creditor_name"])
	case models.TypePurchase:
		return cardOrWallet, safeRecipient(details["shop_name"])
	case models.TypeCreditCardInvoice, models.TypeCreditCardInvoicePayment,
		models.TypeMortgageReceipt, models.TypeBankCommission:
		return wallet, bank
	}
	return models.UnknownSubject{}, models.UnknownSubject{}
}

func comment(details map[string]string, txType models.TransactionType) string {
	switch txType {
	case models.TypeIssuedTransfer, models.TypeReceivedTransfer:
		return parser.TitleCase(details["description"])
	case models.TypeReturnDeposit:
		return parser.TitleCase(details["return_reason"])
	}
	return ""
}

func keywords(raw rawjson.Document, details map[string]string) []string {
	literals := parser.ExtractLiterals(raw, literalFields)
	literals = append(literals, parser.DetailLiterals(details)...)
	return textutils.ExtractKeywords(literals)
}

// ParseAccountTransaction decodes one raw account movement.
func (p *Parser) ParseAccountTransaction(bank models.BankConfig, account models.AccountConfig, raw rawjson.Document) (*models.Transaction, error) {
	amount, err := decodeAmount(raw, "amount.amount")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "amount.amount", Err: err}
	}
	currency, ok := rawjson.GetString(raw, "amount.currency.code")
	if !ok {
		return nil, &parser.ParseError{Provider: BankID, Field: "amount.currency.code"}
	}
	balance, err := decodeAmount(raw, "balance.availableBalance.amount")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "balance.availableBalance.amount", Err: err}
	}

	direction := models.DirectionCharge
	if !amount.IsNegative() {
		direction = models.DirectionIncome
	}

	details := parser.ExtractDetails(raw, detailSpecs)
	txType := ClassifyType(details["transaction_type"], direction)
	delete(details, "transaction_type")

	card := lookupCard(account, details["card_number"])
	delete(details, "card_number")

	valueDate, txDate, err := decodeDates(raw)
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "valueDate", Err: err}
	}

	accountSubject := models.AccountFromConfig(account)
	source, destination := subjects(details, txType, accountSubject, card, models.BankFromConfig(bank))

	transactionID, _ := rawjson.GetString(raw, "id")

	return &models.Transaction{
		TransactionID:   transactionID,
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

// ParseCreditCardTransaction decodes one raw card movement. The payload does
// not name its card, so the wallet reference comes from the card being
// scraped, and everything card related is assumed to be a purchase until the
// portal says otherwise. Debit and non-consolidated movements are flagged
// invalid: they never participate in matching.
func (p *Parser) ParseCreditCardTransaction(bank models.BankConfig, account models.AccountConfig, card models.CardConfig, raw rawjson.Document) (*models.Transaction, error) {
	amount, err := decodeAmount(raw, "amount.amount")
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "amount.amount", Err: err}
	}
	currency, ok := rawjson.GetString(raw, "amount.currency.code")
	if !ok {
		return nil, &parser.ParseError{Provider: BankID, Field: "amount.currency.code"}
	}

	direction := models.DirectionCharge
	if !amount.IsNegative() {
		direction = models.DirectionIncome
	}

	details := parser.ExtractDetails(raw, detailSpecs)
	delete(details, "transaction_type")
	delete(details, "card_number")
	txType := ClassifyType("0017", direction)

	valueDate, txDate, err := decodeDates(raw)
	if err != nil {
		return nil, &parser.ParseError{Provider: BankID, Field: "valueDate", Err: err}
	}

	cardSubject := models.CardFromConfig(card)
	source, destination := subjects(details, txType, cardSubject, &cardSubject, models.BankFromConfig(bank))

	transactionID, _ := rawjson.GetString(raw, "id")
	status, _ := rawjson.GetString(raw, "status.id")
	invalid := status == "NOT_CONSOLIDATED" || status == "DEBIT"
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
		ValueDate:       valueDate,
		TransactionDate: txDate,
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

func decodeDates(raw rawjson.Document) (time.Time, time.Time, error) {
	rawValue, ok := rawjson.GetString(raw, "valueDate")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("missing valueDate")
	}
	valueDate, err := decodeDate(rawValue)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	rawValue, ok = rawjson.GetString(raw, "transactionDate")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("missing transactionDate")
	}
	txDate, err := decodeDate(rawValue)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return valueDate, txDate, nil
}
