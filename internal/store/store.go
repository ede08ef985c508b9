// Package store persists transactions as JSON documents under the database
// folder, one collection per account kind plus the access code mailbox.
// Reads are concurrent; writers to the same log serialize through the
// per-log lock so a reconcile batch applies atomically relative to them.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"banking/internal/logging"
	"banking/internal/models"
)

// LogKey addresses one transaction log: a concrete account or card.
type LogKey struct {
	Kind models.AccountKind
	ID   string
}

func (k LogKey) collection() string {
	switch k.Kind {
	case models.KindBankCreditCard:
		return "credit_card_transactions"
	case models.KindLocalAccount:
		return "local_account_transactions"
	default:
		return "account_transactions"
	}
}

const accessCodeCollection = "access_codes"

// SortDirection orders query results by the sort field.
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// FindOptions narrow and order a Find query. Zero values mean "no filter";
// the default sort is ascending by seq.
type FindOptions struct {
	SinceSeq      *int
	SinceDate     *time.Time
	SortField     string // "seq" (default) or "transaction_date"
	SortDirection SortDirection
}

// Store is a folder-backed document store.
type Store struct {
	root string
	log  logging.Logger

	mu       sync.RWMutex
	logLocks sync.Map // LogKey -> *sync.Mutex
}

// Open prepares the collection folders under root.
func Open(root string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	collections := []string{
		"account_transactions",
		"credit_card_transactions",
		"local_account_transactions",
		accessCodeCollection,
	}
	for _, collection := range collections {
		if err := os.MkdirAll(filepath.Join(root, collection), 0o755); err != nil {
			return nil, &DatabaseError{Message: "creating database folder", Err: err}
		}
	}
	return &Store{root: root, log: log}, nil
}

// LogLock returns the mutex serializing writes to one log. The reconciler
// holds it for the whole duration of a merge.
func (s *Store) LogLock(key LogKey) *sync.Mutex {
	lock, _ := s.logLocks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func keyOf(tx *models.Transaction) (LogKey, error) {
	switch tx.Kind {
	case models.KindBankCreditCard:
		if tx.Card == nil {
			return LogKey{}, fmt.Errorf("credit card transaction without card reference")
		}
		return LogKey{Kind: tx.Kind, ID: tx.Card.Number}, nil
	default:
		if tx.Account == nil {
			return LogKey{}, fmt.Errorf("transaction without account reference")
		}
		return LogKey{Kind: tx.Kind, ID: tx.Account.Number}, nil
	}
}

func (s *Store) readCollection(key LogKey) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, key.collection())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DatabaseError{Message: "reading collection " + key.collection(), Err: err}
	}

	var txs []*models.Transaction
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, &DatabaseError{Message: "reading document " + entry.Name(), Err: err}
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &DatabaseError{Message: "decoding document " + entry.Name(), Err: err}
		}
		tx, err := DecodeTransaction(doc)
		if err != nil {
			return nil, &DatabaseError{Message: "decoding document " + entry.Name(), Err: err}
		}
		txKey, err := keyOf(tx)
		if err != nil || txKey.ID != key.ID {
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Find returns the log's transactions per the given options.
func (s *Store) Find(key LogKey, opts FindOptions) ([]*models.Transaction, error) {
	txs, err := s.readCollection(key)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if opts.SinceSeq != nil && tx.Seq < *opts.SinceSeq {
			continue
		}
		if opts.SinceDate != nil && tx.TransactionDate.Before(*opts.SinceDate) {
			continue
		}
		filtered = append(filtered, tx)
	}

	byDate := opts.SortField == "transaction_date"
	sort.SliceStable(filtered, func(i, j int) bool {
		if byDate {
			return filtered[i].TransactionDate.Before(filtered[j].TransactionDate)
		}
		return filtered[i].Seq < filtered[j].Seq
	})
	if opts.SortDirection == Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	return filtered, nil
}

// FindFirst returns the lowest-seq transaction of a log, or nil on an empty
// log.
func (s *Store) FindFirst(key LogKey) (*models.Transaction, error) {
	return s.findEdge(key, Ascending)
}

// FindLast returns the highest-seq transaction of a log, or nil on an empty
// log.
func (s *Store) FindLast(key LogKey) (*models.Transaction, error) {
	return s.findEdge(key, Descending)
}

func (s *Store) findEdge(key LogKey, direction SortDirection) (*models.Transaction, error) {
	txs, err := s.Find(key, FindOptions{SortDirection: direction})
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return txs[0], nil
}

// FindMatching looks for the stored transaction sharing the fetched one's
// fingerprint, skipping deliberate duplicates. More than one match means a
// store invariant was already violated.
func (s *Store) FindMatching(key LogKey, tx *models.Transaction) (*models.Transaction, error) {
	stored, err := s.Find(key, FindOptions{})
	if err != nil {
		return nil, err
	}
	fingerprint := tx.Fingerprint()
	var matches []*models.Transaction
	for _, candidate := range stored {
		if candidate.StatusFlags.ValidDuplicate {
			continue
		}
		if candidate.Fingerprint() == fingerprint {
			matches = append(matches, candidate)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		return nil, &DatabaseError{Message: fmt.Sprintf(
			"found more than one match for a transaction, check the algorithm [%s %s]",
			tx.TransactionDate.Format(models.DateLayout), tx.Amount.String())}
	}
	return matches[0], nil
}

// Count returns the number of transactions in a log.
func (s *Store) Count(key LogKey) (int, error) {
	txs, err := s.readCollection(key)
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// LastDate returns the newest transaction date of a log. The boolean is
// false for an empty log.
func (s *Store) LastDate(key LogKey) (time.Time, bool, error) {
	txs, err := s.Find(key, FindOptions{SortField: "transaction_date"})
	if err != nil {
		return time.Time{}, false, err
	}
	if len(txs) == 0 {
		return time.Time{}, false, nil
	}
	return txs[len(txs)-1].TransactionDate, true, nil
}

// Insert writes a new document for the transaction and assigns its DocID.
func (s *Store) Insert(tx *models.Transaction) error {
	key, err := keyOf(tx)
	if err != nil {
		return &DatabaseError{Message: "inserting transaction", Err: err}
	}
	if tx.DocID == "" {
		tx.DocID = uuid.NewString()
	}
	return s.writeDocument(key.collection(), tx.DocID, EncodeTransaction(tx))
}

// Update rewrites the document of an already stored transaction.
func (s *Store) Update(tx *models.Transaction) error {
	key, err := keyOf(tx)
	if err != nil {
		return &DatabaseError{Message: "updating transaction", Err: err}
	}
	if tx.DocID == "" {
		return &DatabaseError{Message: "updating a transaction that was never stored"}
	}
	path := filepath.Join(s.root, key.collection(), tx.DocID+".json")
	if _, err := os.Stat(path); err != nil {
		return &DatabaseError{Message: "updating a missing document", Err: err}
	}
	return s.writeDocument(key.collection(), tx.DocID, EncodeTransaction(tx))
}

// Remove deletes the transaction's document.
func (s *Store) Remove(tx *models.Transaction) error {
	key, err := keyOf(tx)
	if err != nil {
		return &DatabaseError{Message: "removing transaction", Err: err}
	}
	if tx.DocID == "" {
		return &DatabaseError{Message: "removing a transaction that was never stored"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.root, key.collection(), tx.DocID+".json")
	if err := os.Remove(path); err != nil {
		return &DatabaseError{Message: "removing document", Err: err}
	}
	return nil
}

func (s *Store) writeDocument(collection, id string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &DatabaseError{Message: "encoding document", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.root, collection, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &DatabaseError{Message: "writing document", Err: err}
	}
	return nil
}

// GetAccessCode reads the mailbox entry for an account, nil when no code is
// pending.
func (s *Store) GetAccessCode(accountID string) (*models.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path := filepath.Join(s.root, accessCodeCollection, accountID+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &DatabaseError{Message: "reading access code", Err: err}
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DatabaseError{Message: "decoding access code", Err: err}
	}
	code, err := DecodeAccessCode(doc)
	if err != nil {
		return nil, &DatabaseError{Message: "decoding access code", Err: err}
	}
	return &code, nil
}

// PutAccessCode replaces the mailbox entry for an account.
func (s *Store) PutAccessCode(accountID string, code models.AccessCode) error {
	return s.writeDocument(accessCodeCollection, accountID, EncodeAccessCode(accountID, code))
}

// RemoveAccessCode consumes the mailbox entry for an account.
func (s *Store) RemoveAccessCode(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.root, accessCodeCollection, accountID+".json")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &DatabaseError{Message: "removing access code", Err: err}
	}
	return nil
}

// CheckSequenceNumbering returns the seq values occurring more than once in
// a log. A non-empty result breaks the density invariant.
func (s *Store) CheckSequenceNumbering(key LogKey) ([]int, error) {
	txs, err := s.Find(key, FindOptions{})
	if err != nil {
		return nil, err
	}
	seen := make(map[int]int)
	for _, tx := range txs {
		seen[tx.Seq]++
	}
	var duplicated []int
	for seq, count := range seen {
		if count > 1 {
			duplicated = append(duplicated, seq)
		}
	}
	sort.Ints(duplicated)
	return duplicated, nil
}

// CheckBalanceConsistency verifies that every consecutive pair of an account
// log satisfies round(prev.balance + amount, 2) == balance. Returns the
// first offending transaction, nil when the log is consistent.
func (s *Store) CheckBalanceConsistency(key LogKey) (*models.Transaction, error) {
	txs, err := s.Find(key, FindOptions{})
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	previous := txs[0].Balance
	for _, tx := range txs[1:] {
		if !previous.Add(tx.Amount).Round(2).Equal(tx.Balance.Round(2)) {
			return tx, nil
		}
		previous = tx.Balance
	}
	return nil, nil
}
