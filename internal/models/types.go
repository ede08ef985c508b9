// Package models provides the canonical transaction model shared by the
// parsers, the rule engine, the reconciler and the store.
package models

// TransactionType classifies a transaction from the bank's perspective.
type TransactionType string

const (
	TypeIssuedTransfer           TransactionType = "issued_transfer"
	TypeReceivedTransfer         TransactionType = "received_transfer"
	TypeBankCommission           TransactionType = "bank_commission"
	TypeBankCommissionReturn     TransactionType = "bank_commission_return"
	TypeMortgageReceipt          TransactionType = "mortgage_receipt"
	TypeDomiciledReceipt         TransactionType = "domiciled_receipt"
	TypeReturnDeposit            TransactionType = "return_deposit"
	TypeCreditCardInvoice        TransactionType = "credit_card_invoice"
	TypeCreditCardInvoicePayment TransactionType = "credit_card_invoice_payment"
	TypePurchase                 TransactionType = "purchase"
	TypePurchaseReturn           TransactionType = "purchase_return"
	TypeATMWithdrawal            TransactionType = "atm_withdrawal"
	TypeUnknown                  TransactionType = "unknown"
)

// TransactionTypes lists every valid transaction type. Used by rule
// validation to reject typos in rule files.
var TransactionTypes = []TransactionType{
	TypeIssuedTransfer,
	TypeReceivedTransfer,
	TypeBankCommission,
	TypeBankCommissionReturn,
	TypeMortgageReceipt,
	TypeDomiciledReceipt,
	TypeReturnDeposit,
	TypeCreditCardInvoice,
	TypeCreditCardInvoicePayment,
	TypePurchase,
	TypePurchaseReturn,
	TypeATMWithdrawal,
	TypeUnknown,
}

// ValidTransactionType reports whether t belongs to the closed type set.
func ValidTransactionType(t TransactionType) bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TransactionDirection is derived from the sign of the amount: money leaving
// the account is a charge, money entering it is an income.
type TransactionDirection int

const (
	DirectionCharge TransactionDirection = iota
	DirectionIncome
)

func (d TransactionDirection) String() string {
	if d == DirectionCharge {
		return "charge"
	}
	return "income"
}

// DataOrigin records who last wrote a mutable transaction field.
type DataOrigin string

const (
	OriginOriginal DataOrigin = "original"
	OriginRules    DataOrigin = "rules"
	OriginUser     DataOrigin = "user"
)

// AccountKind selects which fields of a Transaction are meaningful and which
// store collection holds it.
type AccountKind string

const (
	KindBankAccount    AccountKind = "bank_account"
	KindBankCreditCard AccountKind = "bank_credit_card"
	KindLocalAccount   AccountKind = "local_account"
)
