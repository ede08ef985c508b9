// Package reconciler merges fetched transaction batches into the stored log
// while keeping seq numbers dense and the balance chain intact. Batches may
// arrive late, overlap history at either end or contradict it; contradiction
// aborts the batch with a diverged history error and leaves the store
// untouched.
package reconciler

import (
	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/store"
)

// Result summarizes the operations applied by one merge.
type Result struct {
	Removed  int
	Inserted int
	Updated  int
}

type opKind int

const (
	opRemove opKind = iota
	opInsert
	opUpdate
)

type operation struct {
	kind opKind
	tx   *models.Transaction
}

// Merge reconciles a fetched batch into the given log. The whole merge runs
// under the log's write lock; operations are collected first and applied
// only when the diff completes without error, so a diverged history never
// mutates the store.
func Merge(s *store.Store, key store.LogKey, fetched []*models.Transaction, log logging.Logger) (Result, error) {
	if log == nil {
		log = logging.NewLogrusAdapter("info", "text")
	}
	if len(fetched) == 0 {
		return Result{}, nil
	}

	lock := s.LogLock(key)
	lock.Lock()
	defer lock.Unlock()

	ops, err := plan(s, key, fetched, log)
	if err != nil {
		return Result{}, err
	}

	result, err := apply(s, ops)
	if err != nil {
		return result, err
	}

	if err := verify(s, key); err != nil {
		return result, err
	}
	return result, nil
}

func plan(s *store.Store, key store.LogKey, fetched []*models.Transaction, log logging.Logger) ([]operation, error) {
	count, err := s.Count(key)
	if err != nil {
		return nil, err
	}

	// Empty log: the whole batch is new.
	if count == 0 {
		return sequenced(opInsert, fetched, 0), nil
	}

	firstStored, err := s.FindFirst(key)
	if err != nil {
		return nil, err
	}
	lastStored, err := s.FindLast(key)
	if err != nil {
		return nil, err
	}
	firstFetched := fetched[0]
	lastFetched := fetched[len(fetched)-1]

	// Every fetched transaction is newer: append at the tail.
	if firstFetched.TransactionDate.After(lastStored.TransactionDate) {
		return sequenced(opInsert, fetched, lastStored.Seq+1), nil
	}

	// Every fetched transaction is older: prepend at the head and push the
	// stored records forward.
	if lastFetched.TransactionDate.Before(firstStored.TransactionDate) {
		existing, err := s.Find(key, store.FindOptions{})
		if err != nil {
			return nil, err
		}
		ops := sequenced(opInsert, fetched, 0)
		ops = append(ops, sequenced(opUpdate, existing, len(fetched))...)
		return ops, nil
	}

	// The batch overlaps stored history. Without a single fingerprint match
	// the overlap is a contradiction.
	var overlapping []*models.Transaction
	for _, tx := range fetched {
		match, err := s.FindMatching(key, tx)
		if err != nil {
			return nil, err
		}
		if match != nil {
			overlapping = append(overlapping, match)
		}
	}
	if len(overlapping) == 0 {
		return nil, &store.DivergedHistoryError{
			Transaction: firstFetched,
			Extra:       "All transactions overlap without matches",
		}
	}

	since := overlapping[0].TransactionDate
	existing, err := s.Find(key, store.FindOptions{SinceDate: &since})
	if err != nil {
		return nil, err
	}
	return diffOperations(fetched, existing, log)
}

// sequenced clones the transactions and assigns consecutive seq numbers
// starting at firstSeq.
func sequenced(kind opKind, txs []*models.Transaction, firstSeq int) []operation {
	ops := make([]operation, 0, len(txs))
	for i, tx := range txs {
		clone := tx.Clone()
		clone.Seq = firstSeq + i
		ops = append(ops, operation{kind: kind, tx: clone})
	}
	return ops
}

func apply(s *store.Store, ops []operation) (Result, error) {
	var result Result
	for _, op := range ops {
		if op.kind != opRemove {
			continue
		}
		if err := s.Remove(op.tx); err != nil {
			return result, err
		}
		result.Removed++
	}
	for _, op := range ops {
		if op.kind != opInsert {
			continue
		}
		if err := s.Insert(op.tx); err != nil {
			return result, err
		}
		result.Inserted++
	}
	for _, op := range ops {
		if op.kind != opUpdate {
			continue
		}
		if err := s.Update(op.tx); err != nil {
			return result, err
		}
		result.Updated++
	}
	return result, nil
}

func verify(s *store.Store, key store.LogKey) error {
	duplicated, err := s.CheckSequenceNumbering(key)
	if err != nil {
		return err
	}
	if len(duplicated) > 0 {
		return &store.DatabaseError{Message: "duplicated sequence numbers detected"}
	}
	if key.Kind == models.KindBankAccount {
		offending, err := s.CheckBalanceConsistency(key)
		if err != nil {
			return err
		}
		if offending != nil {
			return &store.DatabaseError{Message: "balance is inconsistent at " +
				offending.TransactionDate.Format(models.DateLayout)}
		}
	}
	return nil
}
