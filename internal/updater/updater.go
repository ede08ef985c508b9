// Package updater runs the full update pipeline for every configured account
// and card: scrape the provider, parse the raw documents, filter them to the
// requested window, run the rule engine and merge the result into the store.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"banking/internal/config"
	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/parser"
	"banking/internal/rawjson"
	"banking/internal/reconciler"
	"banking/internal/rules"
	"banking/internal/scraper"
	"banking/internal/store"
)

const (
	defaultRetryAttempts = 4
	defaultRetryBackoff  = 3 * time.Second
	defaultPollInterval  = time.Second
	defaultPollTimeout   = 10 * time.Second
)

// Params carries the updater's collaborators. Zero timing fields fall back
// to the defaults.
type Params struct {
	Store    *store.Store
	Banking  *config.Banking
	Metadata *config.Metadata
	Engine   *rules.Engine
	Scrapers scraper.Factory
	Scraper  scraper.Options
	Notifier Notifier
	Log      logging.Logger

	RetryAttempts int
	RetryBackoff  time.Duration
	PollInterval  time.Duration
	PollTimeout   time.Duration
}

// Updater walks the configured banks and updates each account and active
// card sequentially.
type Updater struct {
	store    *store.Store
	banking  *config.Banking
	metadata *config.Metadata
	engine   *rules.Engine
	scrapers scraper.Factory
	options  scraper.Options
	notifier Notifier
	log      logging.Logger

	now func() time.Time

	retryAttempts int
	retryBackoff  time.Duration
	pollInterval  time.Duration
	pollTimeout   time.Duration
}

// New builds an updater from its collaborators.
func New(p Params) *Updater {
	u := &Updater{
		store:         p.Store,
		banking:       p.Banking,
		metadata:      p.Metadata,
		engine:        p.Engine,
		scrapers:      p.Scrapers,
		options:       p.Scraper,
		notifier:      p.Notifier,
		log:           p.Log,
		now:           time.Now,
		retryAttempts: p.RetryAttempts,
		retryBackoff:  p.RetryBackoff,
		pollInterval:  p.PollInterval,
		pollTimeout:   p.PollTimeout,
	}
	if u.notifier == nil {
		u.notifier = LogNotifier{Log: u.log}
	}
	if u.retryAttempts == 0 {
		u.retryAttempts = defaultRetryAttempts
	}
	if u.retryBackoff == 0 {
		u.retryBackoff = defaultRetryBackoff
	}
	if u.pollInterval == 0 {
		u.pollInterval = defaultPollInterval
	}
	if u.pollTimeout == 0 {
		u.pollTimeout = defaultPollTimeout
	}
	return u
}

// UpdateAll updates every account and active card of every configured bank.
// Tasks run sequentially; a failed task is logged and notified but does not
// stop the remaining ones.
func (u *Updater) UpdateAll(ctx context.Context) error {
	var errs []error
	for _, bank := range u.banking.Banks {
		for _, account := range bank.Accounts {
			if err := u.UpdateAccount(ctx, bank, account); err != nil {
				errs = append(errs, err)
				u.reportFailure(err, bank, account.Name)
			}
			for _, card := range account.Cards {
				if !card.Active {
					u.log.Debug("Skipping inactive card",
						logging.Field{Key: logging.FieldCard, Value: card.Name})
					continue
				}
				if err := u.UpdateCard(ctx, bank, account, card); err != nil {
					errs = append(errs, err)
					u.reportFailure(err, bank, card.Name)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// UpdateAccount runs the pipeline for one bank account.
func (u *Updater) UpdateAccount(ctx context.Context, bank models.BankConfig, account models.AccountConfig) error {
	key := store.LogKey{Kind: models.KindBankAccount, ID: account.ID}
	metaKey := config.MetadataKey(bank.ID, models.KindBankAccount, account.ID)
	log := u.log.WithFields(
		logging.Field{Key: logging.FieldBank, Value: bank.ID},
		logging.Field{Key: logging.FieldAccount, Value: account.Name})

	if u.recentlyUpdated(metaKey) {
		log.Debug("Skipping recently updated account")
		return nil
	}

	from, to, err := u.window(key)
	if err != nil {
		return err
	}

	session, err := u.scrapers(bank, u.sessionOptions(ctx, account.ID), log)
	if err != nil {
		return err
	}
	var raws []rawjson.Document
	err = u.withRetry(ctx, log, func(ctx context.Context) error {
		var fetchErr error
		raws, fetchErr = session.FetchAccount(ctx, bank, account, from, to)
		return fetchErr
	})
	if err != nil {
		return err
	}

	provider, err := parser.ForBank(bank.ID)
	if err != nil {
		return err
	}
	parsed := parser.ParseAccountBatch(provider, log, bank, account, raws)
	return u.merge(key, metaKey, parsed, from, to, log)
}

// UpdateCard runs the pipeline for one credit card.
func (u *Updater) UpdateCard(ctx context.Context, bank models.BankConfig, account models.AccountConfig, card models.CardConfig) error {
	key := store.LogKey{Kind: models.KindBankCreditCard, ID: card.Number}
	metaKey := config.MetadataKey(bank.ID, models.KindBankCreditCard, card.Number)
	log := u.log.WithFields(
		logging.Field{Key: logging.FieldBank, Value: bank.ID},
		logging.Field{Key: logging.FieldCard, Value: card.Name})

	if u.recentlyUpdated(metaKey) {
		log.Debug("Skipping recently updated card")
		return nil
	}

	from, to, err := u.window(key)
	if err != nil {
		return err
	}

	session, err := u.scrapers(bank, u.sessionOptions(ctx, account.ID), log)
	if err != nil {
		return err
	}
	var raws []rawjson.Document
	err = u.withRetry(ctx, log, func(ctx context.Context) error {
		var fetchErr error
		raws, fetchErr = session.FetchCreditCard(ctx, bank, account, card, from, to)
		return fetchErr
	})
	if err != nil {
		return err
	}

	provider, err := parser.ForBank(bank.ID)
	if err != nil {
		return err
	}
	parsed := parser.ParseCreditCardBatch(provider, log, bank, account, card, raws)
	return u.merge(key, metaKey, parsed, from, to, log)
}

// merge filters the parsed batch to the window, runs the rules and
// reconciles the result into the store.
func (u *Updater) merge(key store.LogKey, metaKey string, parsed []*models.Transaction, from, to time.Time, log logging.Logger) error {
	parsed = parser.FilterWindow(parsed, from, to)
	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].TransactionDate.Before(parsed[j].TransactionDate)
	})
	parsed = u.engine.ApplyAll(parsed)

	result, err := reconciler.Merge(u.store, key, parsed, log)
	if err != nil {
		return err
	}
	if err := u.metadata.MarkUpdated(metaKey, u.now()); err != nil {
		return err
	}
	log.Info("Update finished",
		logging.Field{Key: "inserted", Value: result.Inserted},
		logging.Field{Key: "updated", Value: result.Updated},
		logging.Field{Key: "removed", Value: result.Removed})
	return nil
}

// window returns the date range to request from the provider: from one day
// before the last stored transaction, or from the start of the previous year
// when the log is empty, up to now.
func (u *Updater) window(key store.LogKey) (time.Time, time.Time, error) {
	to := u.now()
	from := time.Date(to.Year()-1, time.January, 1, 0, 0, 0, 0, to.Location())
	last, present, err := u.store.LastDate(key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if present {
		from = last.AddDate(0, 0, -1)
	}
	return from, to, nil
}

func (u *Updater) recentlyUpdated(metaKey string) bool {
	last, ok := u.metadata.LastUpdated(metaKey)
	if !ok {
		return false
	}
	timeout := time.Duration(u.banking.Scheduler.UpdateTimeoutSeconds) * time.Second
	return u.now().Sub(last) < timeout
}

func (u *Updater) sessionOptions(ctx context.Context, accountID string) scraper.Options {
	opts := u.options
	opts.AccessCode = func(ctx context.Context) (string, error) {
		return u.awaitAccessCode(ctx, accountID)
	}
	return opts
}

// withRetry runs the task and retries interaction failures with doubling
// backoff. Other errors pass through untouched.
func (u *Updater) withRetry(ctx context.Context, log logging.Logger, task func(context.Context) error) error {
	backoff := u.retryBackoff
	var last error
	for attempt := 1; attempt <= u.retryAttempts; attempt++ {
		last = task(ctx)
		if last == nil {
			return nil
		}
		var interaction *scraper.InteractionError
		if !errors.As(last, &interaction) {
			return last
		}
		log.WithError(last).Warn("Scraping attempt failed",
			logging.Field{Key: logging.FieldAttempt, Value: attempt})
		if attempt < u.retryAttempts {
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
	}
	return &RetryExhaustedError{Attempts: u.retryAttempts, Err: last}
}

// awaitAccessCode notifies the operator and polls the store mailbox until a
// code sent after the request arrives or the polling window closes.
func (u *Updater) awaitAccessCode(ctx context.Context, accountID string) (string, error) {
	requested := u.now()
	if err := u.notifier.Notify(fmt.Sprintf("Access code required for account %s", accountID)); err != nil {
		u.log.WithError(err).Warn("Failed to deliver access code notification")
	}

	deadline := requested.Add(u.pollTimeout)
	for {
		code, err := u.store.GetAccessCode(accountID)
		if err != nil {
			return "", err
		}
		if code != nil && !code.Date.Before(requested) {
			if err := u.store.RemoveAccessCode(accountID); err != nil {
				return "", err
			}
			return code.Code, nil
		}
		if u.now().After(deadline) {
			return "", &AccessCodeTimeoutError{AccountID: accountID}
		}
		if err := sleep(ctx, u.pollInterval); err != nil {
			return "", err
		}
	}
}

func (u *Updater) reportFailure(err error, bank models.BankConfig, name string) {
	u.log.WithError(err).Error("Update task failed",
		logging.Field{Key: logging.FieldBank, Value: bank.ID})
	message := fmt.Sprintf("Update of %s (%s) failed: %v", name, bank.Name, err)
	if notifyErr := u.notifier.Notify(message); notifyErr != nil {
		u.log.WithError(notifyErr).Warn("Failed to deliver failure notification")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
