// Package export writes transaction logs to CSV for use in spreadsheets.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"banking/internal/logging"
	"banking/internal/models"
)

type csvRow struct {
	Seq             int    `csv:"Seq"`
	TransactionDate string `csv:"Transaction Date"`
	ValueDate       string `csv:"Value Date"`
	Type            string `csv:"Type"`
	Amount          string `csv:"Amount"`
	Currency        string `csv:"Currency"`
	Balance         string `csv:"Balance"`
	Source          string `csv:"Source"`
	Destination     string `csv:"Destination"`
	Comment         string `csv:"Comment"`
	Category        string `csv:"Category"`
	Tags            string `csv:"Tags"`
	Keywords        string `csv:"Keywords"`
}

func toRow(tx *models.Transaction) csvRow {
	row := csvRow{
		Seq:             tx.Seq,
		TransactionDate: tx.TransactionDate.Format(models.DateLayout),
		ValueDate:       tx.ValueDate.Format(models.DateLayout),
		Type:            string(tx.Type),
		Amount:          tx.Amount.String(),
		Currency:        tx.Currency,
		Source:          tx.Source.SubjectName(),
		Destination:     tx.Destination.SubjectName(),
		Comment:         tx.Comment,
		Tags:            strings.Join(tx.Tags, ";"),
		Keywords:        strings.Join(tx.Keywords, ";"),
	}
	if tx.HasBalance {
		row.Balance = tx.Balance.String()
	}
	if tx.Category != nil {
		row.Category = tx.Category.Name
	}
	return row
}

// WriteTransactionsToCSV writes a transaction log to a CSV file, creating
// parent directories as needed.
func WriteTransactionsToCSV(transactions []*models.Transaction, csvFile string, log logging.Logger) error {
	log.Info("Writing transactions to CSV file",
		logging.Field{Key: "file", Value: csvFile},
		logging.Field{Key: logging.FieldCount, Value: len(transactions)})

	if err := os.MkdirAll(filepath.Dir(csvFile), 0o750); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	file, err := os.Create(csvFile)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file")
		}
	}()

	rows := make([]csvRow, 0, len(transactions))
	for _, tx := range transactions {
		rows = append(rows, toRow(tx))
	}
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("error writing CSV file: %w", err)
	}
	return nil
}
