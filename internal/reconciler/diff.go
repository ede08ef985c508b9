package reconciler

import (
	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/store"
)

// The overlap resolution works as an edit script over two fingerprint
// sequences: the stored slice of the log and the fetched batch. Common
// entries keep or renumber their seq, fetched-only entries insert, and
// stored-only entries accumulate as diverged history that either pairs with
// an invalid fetched record or fails the batch.

type editAction byte

const (
	editCommon  editAction = ' '
	editStored  editAction = '-'
	editFetched editAction = '+'
)

type edit struct {
	action      editAction
	fingerprint string
}

// editScript computes an LCS-based edit script between the stored and
// fetched fingerprint sequences. Stored-only entries come before
// fetched-only entries within a replaced block.
func editScript(stored, fetched []string) []edit {
	n, m := len(stored), len(fetched)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if stored[i] == fetched[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var script []edit
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case stored[i] == fetched[j]:
			script = append(script, edit{editCommon, stored[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			script = append(script, edit{editStored, stored[i]})
			i++
		default:
			script = append(script, edit{editFetched, fetched[j]})
			j++
		}
	}
	for ; i < n; i++ {
		script = append(script, edit{editStored, stored[i]})
	}
	for ; j < m; j++ {
		script = append(script, edit{editFetched, fetched[j]})
	}
	return script
}

func fingerprints(txs []*models.Transaction) ([]string, map[string]*models.Transaction) {
	prints := make([]string, len(txs))
	byPrint := make(map[string]*models.Transaction, len(txs))
	for i, tx := range txs {
		prints[i] = tx.Fingerprint()
		byPrint[prints[i]] = tx
	}
	return prints, byPrint
}

// diffOperations walks the edit script and emits the remove, insert and
// update operations that reconcile the stored slice with the fetched batch.
func diffOperations(fetched, stored []*models.Transaction, log logging.Logger) ([]operation, error) {
	fetchedPrints, fetchedByPrint := fingerprints(fetched)
	storedPrints, storedByPrint := fingerprints(stored)
	lastFetchedPrint := fetchedPrints[len(fetchedPrints)-1]

	var ops []operation
	var diverged []*models.Transaction
	nextSeq := 0
	renumber := false
	allFetchedProcessed := false

	for _, item := range editScript(storedPrints, fetchedPrints) {
		if item.fingerprint == lastFetchedPrint {
			allFetchedProcessed = true
		}

		switch {
		case item.action == editFetched && fetchedByPrint[item.fingerprint].StatusFlags.Invalid:
			// An invalid fetched record pairs with a previously diverged
			// stored record by amount and date; the pair resolves by
			// removing the stored side.
			fetchedTx := fetchedByPrint[item.fingerprint]
			var matching []*models.Transaction
			for _, candidate := range diverged {
				if candidate.Amount.Equal(fetchedTx.Amount) &&
					candidate.TransactionDate.Equal(fetchedTx.TransactionDate) {
					matching = append(matching, candidate)
				}
			}
			if len(matching) > 1 {
				return nil, &store.DivergedHistoryError{
					Transaction: matching[0],
					Extra:       "Multiple matches found while trying to resolve a diverged history",
				}
			}
			if len(matching) == 0 {
				// Nothing to pair with, the invalid record is skipped.
				return finish(ops, diverged)
			}
			log.Info("Resolving diverged history by removing the stored pair of an invalid record",
				logging.Field{Key: logging.FieldDate, Value: matching[0].TransactionDate},
				logging.Field{Key: logging.FieldAmount, Value: matching[0].Amount.String()},
				logging.Field{Key: logging.FieldSeq, Value: matching[0].Seq})
			ops = append(ops, operation{kind: opRemove, tx: matching[0]})
			diverged = without(diverged, matching[0])

		case item.action == editFetched:
			clone := fetchedByPrint[item.fingerprint].Clone()
			clone.Seq = nextSeq
			ops = append(ops, operation{kind: opInsert, tx: clone})
			nextSeq++
			renumber = true

		case item.action == editCommon && !renumber:
			// Present on both sides and nothing shifted yet: just track
			// where the next seq would land.
			nextSeq = storedByPrint[item.fingerprint].Seq + 1

		case item.action == editCommon:
			clone := storedByPrint[item.fingerprint].Clone()
			clone.Seq = nextSeq
			ops = append(ops, operation{kind: opUpdate, tx: clone})
			nextSeq++

		case allFetchedProcessed && renumber:
			// Stored-only records past the fetched window still need their
			// seq pushed forward.
			clone := storedByPrint[item.fingerprint].Clone()
			clone.Seq = nextSeq
			ops = append(ops, operation{kind: opUpdate, tx: clone})
			nextSeq++

		case !allFetchedProcessed:
			diverged = append(diverged, storedByPrint[item.fingerprint])
		}

		if allFetchedProcessed && !renumber {
			break
		}
	}

	return finish(ops, diverged)
}

func finish(ops []operation, diverged []*models.Transaction) ([]operation, error) {
	if len(diverged) > 0 {
		return nil, &store.DivergedHistoryError{Transaction: diverged[0]}
	}
	return ops, nil
}

func without(txs []*models.Transaction, removed *models.Transaction) []*models.Transaction {
	kept := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx != removed {
			kept = append(kept, tx)
		}
	}
	return kept
}
