package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking/internal/logging"
	"banking/internal/models"
)

var testAccount = models.Account{Name: "Main account", Number: "ES1402440000000000000000"}

func accountKey() LogKey {
	return LogKey{Kind: models.KindBankAccount, ID: testAccount.Number}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), &logging.MockLogger{})
	require.NoError(t, err)
	return s
}

func accountTx(seq int, date string, amount, balance string) *models.Transaction {
	when, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	account := testAccount
	return &models.Transaction{
		Seq:             seq,
		Kind:            models.KindBankAccount,
		Type:            models.TypePurchase,
		Currency:        "EUR",
		Amount:          decimal.RequireFromString(amount),
		Balance:         decimal.RequireFromString(balance),
		HasBalance:      true,
		ValueDate:       when,
		TransactionDate: when,
		Source:          account,
		Destination:     models.Recipient{Name: "Some shop"},
		Account:         &account,
		Details:         map[string]string{"shop_name": "Some shop"},
		Keywords:        []string{"SOME", "SHOP"},
		Flags:           models.NewModifiedFlags(),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tx := accountTx(7, "2019-01-01T00:00:00", "-12.50", "987.50")
	tx.DocID = "doc-1"
	tx.Comment = "a comment"
	tx.Tags = []string{"one", "two"}
	tx.Category = &models.Category{ID: "books", Name: "Books", ParentID: "leisure"}
	tx.Flags.Destination = models.OriginRules
	tx.StatusFlags.ValidDuplicate = true

	decoded, err := DecodeTransaction(EncodeTransaction(tx))
	require.NoError(t, err)
	assert.True(t, decoded.Equal(tx))
	assert.Equal(t, "doc-1", decoded.DocID)
	assert.Equal(t, 7, decoded.Seq)
}

func TestEncodeDecodeRoundTripCreditCard(t *testing.T) {
	when := time.Date(2019, 3, 5, 18, 30, 0, 0, time.UTC)
	card := models.Card{Name: "Credit card", Number: "4000111122223333"}
	tx := &models.Transaction{
		TransactionID:   "mov-1",
		Kind:            models.KindBankCreditCard,
		Type:            models.TypePurchase,
		Currency:        "EUR",
		Amount:          decimal.RequireFromString("-20.50"),
		ValueDate:       when,
		TransactionDate: when,
		Source:          card,
		Destination:     models.UnknownSubject{},
		Card:            &card,
		Flags:           models.NewModifiedFlags(),
		StatusFlags:     models.StatusFlags{Invalid: true},
	}

	decoded, err := DecodeTransaction(EncodeTransaction(tx))
	require.NoError(t, err)
	assert.True(t, decoded.Equal(tx))
	assert.False(t, decoded.HasBalance)
	assert.True(t, decoded.StatusFlags.Invalid)
}

func TestInsertAssignsDocID(t *testing.T) {
	s := openStore(t)
	tx := accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")
	require.NoError(t, s.Insert(tx))
	assert.NotEmpty(t, tx.DocID)

	count, err := s.Count(accountKey())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFindSortingAndFilters(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Insert(accountTx(1, "2019-01-02T00:00:00", "-2.00", "97.00")))
	require.NoError(t, s.Insert(accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")))
	require.NoError(t, s.Insert(accountTx(2, "2019-01-03T00:00:00", "-3.00", "94.00")))

	txs, err := s.Find(accountKey(), FindOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{txs[0].Seq, txs[1].Seq, txs[2].Seq})

	txs, err = s.Find(accountKey(), FindOptions{SortDirection: Descending})
	require.NoError(t, err)
	assert.Equal(t, 2, txs[0].Seq)

	since := 1
	txs, err = s.Find(accountKey(), FindOptions{SinceSeq: &since})
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	date, _ := time.Parse(models.DateLayout, "2019-01-03T00:00:00")
	txs, err = s.Find(accountKey(), FindOptions{SinceDate: &date})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 2, txs[0].Seq)
}

func TestFindFirstAndLast(t *testing.T) {
	s := openStore(t)

	first, err := s.FindFirst(accountKey())
	require.NoError(t, err)
	assert.Nil(t, first)

	require.NoError(t, s.Insert(accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")))
	require.NoError(t, s.Insert(accountTx(1, "2019-01-02T00:00:00", "-2.00", "97.00")))

	first, err = s.FindFirst(accountKey())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 0, first.Seq)

	last, err := s.FindLast(accountKey())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Seq)
}

func TestLastDate(t *testing.T) {
	s := openStore(t)

	_, present, err := s.LastDate(accountKey())
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, s.Insert(accountTx(0, "2019-01-05T00:00:00", "-1.00", "99.00")))
	require.NoError(t, s.Insert(accountTx(1, "2019-01-02T00:00:00", "-2.00", "97.00")))

	date, present, err := s.LastDate(accountKey())
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "2019-01-05T00:00:00", date.Format(models.DateLayout))
}

func TestFindMatching(t *testing.T) {
	s := openStore(t)
	stored := accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")
	require.NoError(t, s.Insert(stored))
	require.NoError(t, s.Insert(accountTx(1, "2019-01-02T00:00:00", "-2.00", "97.00")))

	match, err := s.FindMatching(accountKey(), accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, stored.DocID, match.DocID)

	match, err = s.FindMatching(accountKey(), accountTx(0, "2019-01-09T00:00:00", "-1.00", "99.00"))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestFindMatchingSkipsValidDuplicates(t *testing.T) {
	s := openStore(t)
	original := accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")
	duplicate := accountTx(1, "2019-01-01T00:00:00", "-1.00", "99.00")
	duplicate.StatusFlags.ValidDuplicate = true
	require.NoError(t, s.Insert(original))
	require.NoError(t, s.Insert(duplicate))

	match, err := s.FindMatching(accountKey(), accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, original.DocID, match.DocID)
}

func TestFindMatchingAmbiguityFails(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Insert(accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")))
	require.NoError(t, s.Insert(accountTx(1, "2019-01-01T00:00:00", "-1.00", "99.00")))

	_, err := s.FindMatching(accountKey(), accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00"))
	require.Error(t, err)
	var dbErr *DatabaseError
	assert.ErrorAs(t, err, &dbErr)
}

func TestUpdateAndRemove(t *testing.T) {
	s := openStore(t)
	tx := accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")
	require.NoError(t, s.Insert(tx))

	tx.Seq = 5
	require.NoError(t, s.Update(tx))

	txs, err := s.Find(accountKey(), FindOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 5, txs[0].Seq)

	require.NoError(t, s.Remove(tx))
	count, err := s.Count(accountKey())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUpdateUnstoredFails(t *testing.T) {
	s := openStore(t)
	err := s.Update(accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00"))
	require.Error(t, err)
}

func TestAccessCodeMailbox(t *testing.T) {
	s := openStore(t)

	code, err := s.GetAccessCode(testAccount.Number)
	require.NoError(t, err)
	assert.Nil(t, code)

	sent := models.AccessCode{Code: "123456", Date: time.Date(2019, 1, 1, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, s.PutAccessCode(testAccount.Number, sent))

	code, err = s.GetAccessCode(testAccount.Number)
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, "123456", code.Code)
	assert.True(t, sent.Date.Equal(code.Date))

	require.NoError(t, s.RemoveAccessCode(testAccount.Number))
	code, err = s.GetAccessCode(testAccount.Number)
	require.NoError(t, err)
	assert.Nil(t, code)
}

func TestCheckSequenceNumbering(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Insert(accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")))
	require.NoError(t, s.Insert(accountTx(1, "2019-01-02T00:00:00", "-2.00", "97.00")))

	duplicated, err := s.CheckSequenceNumbering(accountKey())
	require.NoError(t, err)
	assert.Empty(t, duplicated)

	require.NoError(t, s.Insert(accountTx(1, "2019-01-03T00:00:00", "-3.00", "94.00")))
	duplicated, err = s.CheckSequenceNumbering(accountKey())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, duplicated)
}

func TestCheckBalanceConsistency(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Insert(accountTx(0, "2019-01-01T00:00:00", "-1.00", "99.00")))
	require.NoError(t, s.Insert(accountTx(1, "2019-01-02T00:00:00", "-2.00", "97.00")))

	offending, err := s.CheckBalanceConsistency(accountKey())
	require.NoError(t, err)
	assert.Nil(t, offending)

	require.NoError(t, s.Insert(accountTx(2, "2019-01-03T00:00:00", "-3.00", "90.00")))
	offending, err = s.CheckBalanceConsistency(accountKey())
	require.NoError(t, err)
	require.NotNil(t, offending)
	assert.Equal(t, 2, offending.Seq)
}
