package reconciler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/store"
)

var testCard = models.Card{Name: "Credit card", Number: "4000111122223333"}

func cardKey() store.LogKey {
	return store.LogKey{Kind: models.KindBankCreditCard, ID: testCard.Number}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), &logging.MockLogger{})
	require.NoError(t, err)
	return s
}

func cardTx(date, amount string) *models.Transaction {
	when, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	card := testCard
	return &models.Transaction{
		Kind:            models.KindBankCreditCard,
		Type:            models.TypePurchase,
		Currency:        "EUR",
		Amount:          decimal.RequireFromString(amount),
		ValueDate:       when,
		TransactionDate: when,
		Source:          card,
		Destination:     models.Recipient{Name: "Some shop"},
		Card:            &card,
		Flags:           models.NewModifiedFlags(),
	}
}

func januaryBatch() []*models.Transaction {
	return []*models.Transaction{
		cardTx("2019-01-01T00:00:00", "-1.0"),
		cardTx("2019-01-01T01:00:00", "-2.0"),
		cardTx("2019-01-02T00:00:00", "-3.0"),
	}
}

func februaryBatch() []*models.Transaction {
	return []*models.Transaction{
		cardTx("2019-02-01T00:00:00", "-4.0"),
		cardTx("2019-02-01T01:00:00", "-5.0"),
		cardTx("2019-02-02T00:00:00", "-6.0"),
	}
}

func storedSeqs(t *testing.T, s *store.Store) map[string]int {
	t.Helper()
	txs, err := s.Find(cardKey(), store.FindOptions{})
	require.NoError(t, err)
	seqs := make(map[string]int, len(txs))
	for _, tx := range txs {
		seqs[tx.Amount.String()] = tx.Seq
	}
	return seqs
}

func TestMergeIntoEmptyStore(t *testing.T) {
	s := openStore(t)

	result, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 3}, result)

	seqs := storedSeqs(t, s)
	assert.Equal(t, map[string]int{"-1": 0, "-2": 1, "-3": 2}, seqs)
}

func TestMergeAppendsNewerBatchAtTail(t *testing.T) {
	s := openStore(t)
	_, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)

	result, err := Merge(s, cardKey(), februaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 3}, result)

	seqs := storedSeqs(t, s)
	assert.Equal(t, map[string]int{
		"-1": 0, "-2": 1, "-3": 2,
		"-4": 3, "-5": 4, "-6": 5,
	}, seqs)
}

func TestMergePrependsOlderBatchAtHead(t *testing.T) {
	s := openStore(t)
	_, err := Merge(s, cardKey(), februaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)

	result, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 3, Updated: 3}, result)

	seqs := storedSeqs(t, s)
	assert.Equal(t, map[string]int{
		"-1": 0, "-2": 1, "-3": 2,
		"-4": 3, "-5": 4, "-6": 5,
	}, seqs)
}

func TestMergeIdenticalBatchIsIdempotent(t *testing.T) {
	s := openStore(t)
	_, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)
	_, err = Merge(s, cardKey(), februaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)

	everything := append(januaryBatch(), februaryBatch()...)
	result, err := Merge(s, cardKey(), everything, &logging.MockLogger{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)

	count, err := s.Count(cardKey())
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestMergeDivergedMiddleFailsAndLeavesStoreUntouched(t *testing.T) {
	s := openStore(t)
	_, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)
	_, err = Merge(s, cardKey(), februaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)

	diverged := []*models.Transaction{
		cardTx("2019-02-01T00:00:00", "-4.0"),
		cardTx("2019-02-01T01:00:00", "-5.5"),
		cardTx("2019-02-02T00:00:00", "-6.0"),
	}
	_, err = Merge(s, cardKey(), diverged, &logging.MockLogger{})
	require.Error(t, err)

	var divergedErr *store.DivergedHistoryError
	require.ErrorAs(t, err, &divergedErr)
	assert.True(t, divergedErr.Transaction.Amount.Equal(decimal.RequireFromString("-5.0")))

	seqs := storedSeqs(t, s)
	assert.Equal(t, map[string]int{
		"-1": 0, "-2": 1, "-3": 2,
		"-4": 3, "-5": 4, "-6": 5,
	}, seqs)
}

func TestMergeOverlapWithoutAnyMatchFails(t *testing.T) {
	s := openStore(t)
	_, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)

	// Same date window as stored history, entirely different content.
	overlapping := []*models.Transaction{
		cardTx("2019-01-01T00:00:00", "-7.0"),
		cardTx("2019-01-02T00:00:00", "-8.0"),
	}
	_, err = Merge(s, cardKey(), overlapping, &logging.MockLogger{})
	require.Error(t, err)

	var divergedErr *store.DivergedHistoryError
	require.ErrorAs(t, err, &divergedErr)
	assert.Contains(t, err.Error(), "overlap without matches")
}

func TestMergeInvalidRecordPairsWithDivergedStored(t *testing.T) {
	s := openStore(t)
	_, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)

	// The provider resends the -2.0 record as a non-consolidated debit with
	// a different value date: its fingerprint no longer matches the stored
	// one, so the stored record accumulates as diverged and the invalid
	// record resolves the pair by removing it.
	invalid := cardTx("2019-01-01T01:00:00", "-2.0")
	invalid.ValueDate = invalid.ValueDate.Add(24 * time.Hour)
	invalid.StatusFlags.Invalid = true

	fetched := []*models.Transaction{
		cardTx("2019-01-01T00:00:00", "-1.0"),
		invalid,
		cardTx("2019-01-02T00:00:00", "-3.0"),
	}

	log := &logging.MockLogger{}
	result, err := Merge(s, cardKey(), fetched, log)
	require.NoError(t, err)
	assert.Equal(t, Result{Removed: 1}, result)
	assert.True(t, log.HasMessage("INFO", "Resolving diverged history by removing the stored pair of an invalid record"))

	count, err := s.Count(cardKey())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	seqs := storedSeqs(t, s)
	assert.NotContains(t, seqs, "-2")
}

func TestMergeEmptyBatchIsNoOp(t *testing.T) {
	s := openStore(t)
	result, err := Merge(s, cardKey(), nil, &logging.MockLogger{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestMergeInsertsMissingMiddleRecordAndRenumbers(t *testing.T) {
	s := openStore(t)
	_, err := Merge(s, cardKey(), []*models.Transaction{
		cardTx("2019-01-01T00:00:00", "-1.0"),
		cardTx("2019-01-02T00:00:00", "-3.0"),
	}, &logging.MockLogger{})
	require.NoError(t, err)

	result, err := Merge(s, cardKey(), januaryBatch(), &logging.MockLogger{})
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 1, Updated: 1}, result)

	seqs := storedSeqs(t, s)
	assert.Equal(t, map[string]int{"-1": 0, "-2": 1, "-3": 2}, seqs)
}

func TestEditScript(t *testing.T) {
	script := editScript(
		[]string{"a", "b", "c"},
		[]string{"a", "x", "c"},
	)
	actions := make([]byte, len(script))
	prints := make([]string, len(script))
	for i, item := range script {
		actions[i] = byte(item.action)
		prints[i] = item.fingerprint
	}
	assert.Equal(t, []byte{' ', '-', '+', ' '}, actions)
	assert.Equal(t, []string{"a", "b", "x", "c"}, prints)
}
