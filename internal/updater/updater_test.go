package updater

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking/internal/config"
	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/parser"
	"banking/internal/rawjson"
	"banking/internal/rules"
	"banking/internal/scraper"
	"banking/internal/store"
)

const testBankID = "testbank"

// fakeProvider decodes the trivial documents fakeScraper emits.
type fakeProvider struct{}

func (fakeProvider) parse(account models.Account, raw rawjson.Document) (*models.Transaction, error) {
	amount, ok := rawjson.GetString(raw, "amount")
	if !ok {
		return nil, fmt.Errorf("missing amount")
	}
	date, ok := rawjson.GetString(raw, "date")
	if !ok {
		return nil, fmt.Errorf("missing date")
	}
	when, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, err
	}
	tx := &models.Transaction{
		Kind:            models.KindBankAccount,
		Type:            models.TypePurchase,
		Currency:        "EUR",
		Amount:          decimal.RequireFromString(amount),
		ValueDate:       when,
		TransactionDate: when,
		Source:          account,
		Destination:     models.Recipient{Name: "Some shop"},
		Account:         &account,
		Flags:           models.NewModifiedFlags(),
	}
	if balance, ok := rawjson.GetString(raw, "balance"); ok {
		tx.Balance = decimal.RequireFromString(balance)
		tx.HasBalance = true
	}
	return tx, nil
}

func (p fakeProvider) ParseAccountTransaction(bank models.BankConfig, account models.AccountConfig, raw rawjson.Document) (*models.Transaction, error) {
	return p.parse(models.Account{Name: account.Name, Number: account.ID}, raw)
}

func (p fakeProvider) ParseCreditCardTransaction(bank models.BankConfig, account models.AccountConfig, card models.CardConfig, raw rawjson.Document) (*models.Transaction, error) {
	tx, err := p.parse(models.Account{Name: account.Name, Number: account.ID}, raw)
	if err != nil {
		return nil, err
	}
	tx.Kind = models.KindBankCreditCard
	tx.HasBalance = false
	resolved := models.Card{Name: card.Name, Number: card.Number}
	tx.Source = resolved
	tx.Card = &resolved
	tx.Account = nil
	return tx, nil
}

func init() {
	parser.Register(testBankID, fakeProvider{})
}

type fakeScraper struct {
	accountDocs []rawjson.Document
	cardDocs    []rawjson.Document
	err         error
	failures    int

	accountCalls int
	cardCalls    int
	from, to     time.Time
	opts         scraper.Options
	codes        []string
}

func (f *fakeScraper) FetchAccount(ctx context.Context, bank models.BankConfig, account models.AccountConfig, from, to time.Time) ([]rawjson.Document, error) {
	f.accountCalls++
	f.from, f.to = from, to
	if f.opts.AccessCode != nil && len(f.codes) < cap(f.codes) {
		code, err := f.opts.AccessCode(ctx)
		if err != nil {
			return nil, err
		}
		f.codes = append(f.codes, code)
	}
	if f.failures > 0 {
		f.failures--
		return nil, &scraper.InteractionError{Provider: bank.ID, Message: "session lost"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.accountDocs, nil
}

func (f *fakeScraper) FetchCreditCard(ctx context.Context, bank models.BankConfig, account models.AccountConfig, card models.CardConfig, from, to time.Time) ([]rawjson.Document, error) {
	f.cardCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cardDocs, nil
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(message string) error {
	n.messages = append(n.messages, message)
	return nil
}

func testBanking(active bool) *config.Banking {
	return &config.Banking{
		Banks: []models.BankConfig{{
			ID:   testBankID,
			Name: "Test Bank",
			Accounts: []models.AccountConfig{{
				Type:   models.KindBankAccount,
				ID:     "ES1402440000000000000000",
				Name:   "Main account",
				BankID: testBankID,
				Cards: []models.CardConfig{{
					Type:          "credit",
					Name:          "Credit card",
					Number:        "4000111122223333",
					Active:        active,
					BankID:        testBankID,
					AccountNumber: "ES1402440000000000000000",
				}},
			}},
		}},
		Scheduler: models.SchedulerConfig{UpdateTimeoutSeconds: 3600},
	}
}

func testUpdater(t *testing.T, session *fakeScraper, banking *config.Banking) (*Updater, *store.Store, *config.Metadata, *fakeNotifier) {
	t.Helper()
	log := &logging.MockLogger{}
	s, err := store.Open(t.TempDir(), log)
	require.NoError(t, err)
	metadata, err := config.LoadMetadata(filepath.Join(t.TempDir(), "metadata.yaml"))
	require.NoError(t, err)
	engine := rules.NewEngine(&rules.RuleSet{}, nil, log)
	notifier := &fakeNotifier{}

	u := New(Params{
		Store:    s,
		Banking:  banking,
		Metadata: metadata,
		Engine:   engine,
		Scrapers: func(bank models.BankConfig, opts scraper.Options, log logging.Logger) (scraper.Scraper, error) {
			session.opts = opts
			return session, nil
		},
		Notifier:      notifier,
		Log:           log,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
		PollInterval:  time.Millisecond,
		PollTimeout:   20 * time.Millisecond,
	})
	return u, s, metadata, notifier
}

func accountDoc(date, amount, balance string) rawjson.Document {
	return rawjson.Document{"date": date, "amount": amount, "balance": balance}
}

func TestUpdateAllMergesFetchedTransactions(t *testing.T) {
	session := &fakeScraper{
		accountDocs: []rawjson.Document{
			accountDoc("2019-01-01T00:00:00", "-1.00", "99.00"),
			accountDoc("2019-01-02T00:00:00", "-2.00", "97.00"),
		},
		cardDocs: []rawjson.Document{
			{"date": "2019-01-03T00:00:00", "amount": "-3.00"},
		},
	}
	banking := testBanking(true)
	u, s, metadata, _ := testUpdater(t, session, banking)
	u.now = func() time.Time {
		return time.Date(2019, time.June, 1, 0, 0, 0, 0, time.Local)
	}

	require.NoError(t, u.UpdateAll(context.Background()))

	count, err := s.Count(store.LogKey{Kind: models.KindBankAccount, ID: "ES1402440000000000000000"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.Count(store.LogKey{Kind: models.KindBankCreditCard, ID: "4000111122223333"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, ok := metadata.LastUpdated(config.MetadataKey(testBankID, models.KindBankAccount, "ES1402440000000000000000"))
	assert.True(t, ok)
	_, ok = metadata.LastUpdated(config.MetadataKey(testBankID, models.KindBankCreditCard, "4000111122223333"))
	assert.True(t, ok)
}

func TestUpdateAllSkipsInactiveCards(t *testing.T) {
	session := &fakeScraper{}
	u, _, _, _ := testUpdater(t, session, testBanking(false))

	require.NoError(t, u.UpdateAll(context.Background()))
	assert.Equal(t, 1, session.accountCalls)
	assert.Equal(t, 0, session.cardCalls)
}

func TestUpdateSkipsRecentlyUpdatedAccount(t *testing.T) {
	session := &fakeScraper{}
	banking := testBanking(false)
	u, _, metadata, _ := testUpdater(t, session, banking)

	key := config.MetadataKey(testBankID, models.KindBankAccount, "ES1402440000000000000000")
	require.NoError(t, metadata.MarkUpdated(key, time.Now()))

	require.NoError(t, u.UpdateAll(context.Background()))
	assert.Equal(t, 0, session.accountCalls)
}

func TestUpdateRetriesInteractionFailures(t *testing.T) {
	session := &fakeScraper{
		failures: 2,
		accountDocs: []rawjson.Document{
			accountDoc("2019-01-01T00:00:00", "-1.00", "99.00"),
		},
	}
	banking := testBanking(false)
	u, s, _, _ := testUpdater(t, session, banking)
	u.now = func() time.Time {
		return time.Date(2019, time.June, 1, 0, 0, 0, 0, time.Local)
	}

	require.NoError(t, u.UpdateAll(context.Background()))
	assert.Equal(t, 3, session.accountCalls)

	count, err := s.Count(store.LogKey{Kind: models.KindBankAccount, ID: "ES1402440000000000000000"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateFailsAfterRetriesExhausted(t *testing.T) {
	session := &fakeScraper{failures: 10}
	banking := testBanking(false)
	u, _, _, notifier := testUpdater(t, session, banking)

	err := u.UpdateAll(context.Background())
	require.Error(t, err)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, session.accountCalls)
	require.NotEmpty(t, notifier.messages)
	assert.Contains(t, notifier.messages[0], "failed")
}

func TestUpdateWindowStartsOneDayBeforeLastStored(t *testing.T) {
	session := &fakeScraper{}
	banking := testBanking(false)
	u, s, _, _ := testUpdater(t, session, banking)

	account := models.Account{Name: "Main account", Number: "ES1402440000000000000000"}
	when, _ := time.Parse(models.DateLayout, "2019-06-15T00:00:00")
	require.NoError(t, s.Insert(&models.Transaction{
		Kind:            models.KindBankAccount,
		Type:            models.TypePurchase,
		Currency:        "EUR",
		Amount:          decimal.RequireFromString("-1.00"),
		Balance:         decimal.RequireFromString("99.00"),
		HasBalance:      true,
		ValueDate:       when,
		TransactionDate: when,
		Source:          account,
		Destination:     models.Recipient{Name: "Some shop"},
		Account:         &account,
		Flags:           models.NewModifiedFlags(),
	}))

	require.NoError(t, u.UpdateAll(context.Background()))
	assert.Equal(t, "2019-06-14T00:00:00", session.from.Format(models.DateLayout))
}

func TestUpdateWindowDefaultsToPreviousYear(t *testing.T) {
	session := &fakeScraper{}
	banking := testBanking(false)
	u, _, _, _ := testUpdater(t, session, banking)

	require.NoError(t, u.UpdateAll(context.Background()))
	expected := time.Date(time.Now().Year()-1, time.January, 1, 0, 0, 0, 0, time.Local)
	assert.True(t, session.from.Equal(expected))
}

func TestAccessCodeDeliveredThroughMailbox(t *testing.T) {
	session := &fakeScraper{codes: make([]string, 0, 1)}
	banking := testBanking(false)
	u, s, _, notifier := testUpdater(t, session, banking)

	require.NoError(t, s.PutAccessCode("ES1402440000000000000000", models.AccessCode{
		Code: "123456",
		Date: time.Now().Add(time.Minute),
	}))

	require.NoError(t, u.UpdateAll(context.Background()))
	require.Len(t, session.codes, 1)
	assert.Equal(t, "123456", session.codes[0])
	require.NotEmpty(t, notifier.messages)
	assert.Contains(t, notifier.messages[0], "Access code required")

	// The mailbox is consumed.
	code, err := s.GetAccessCode("ES1402440000000000000000")
	require.NoError(t, err)
	assert.Nil(t, code)
}

func TestAccessCodeTimesOut(t *testing.T) {
	session := &fakeScraper{codes: make([]string, 0, 1)}
	banking := testBanking(false)
	u, _, _, _ := testUpdater(t, session, banking)

	err := u.UpdateAll(context.Background())
	require.Error(t, err)

	var timeout *AccessCodeTimeoutError
	assert.ErrorAs(t, err, &timeout)
}

func TestAccessCodeDeadlineFollowsInjectedClock(t *testing.T) {
	session := &fakeScraper{codes: make([]string, 0, 1)}
	banking := testBanking(false)
	u, _, _, _ := testUpdater(t, session, banking)
	u.pollTimeout = time.Hour

	// Every clock read advances well past the polling window, so the wait
	// must give up immediately instead of spinning for an hour of wall time.
	base := time.Now()
	step := 0
	u.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * 45 * time.Minute)
	}

	start := time.Now()
	err := u.UpdateAll(context.Background())
	require.Error(t, err)

	var timeout *AccessCodeTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Less(t, time.Since(start), time.Minute)
}
