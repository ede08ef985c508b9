package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"banking/internal/logging"
	"banking/internal/models"
	"banking/internal/rawjson"
)

// FileScraper replays raw provider payloads from a directory tree instead of
// driving a live session. Payload dumps live under
// <root>/<bank>/accounts/<id>.json and <root>/<bank>/cards/<number>.json,
// each holding the JSON array of raw documents the provider returned. A
// missing file yields an empty batch.
type FileScraper struct {
	root string
	bank string
	log  logging.Logger
}

// NewFileFactory builds scraper sessions that replay payloads from root.
func NewFileFactory(root string) Factory {
	return func(bank models.BankConfig, opts Options, log logging.Logger) (Scraper, error) {
		return &FileScraper{root: root, bank: bank.ID, log: log}, nil
	}
}

func (f *FileScraper) FetchAccount(ctx context.Context, bank models.BankConfig, account models.AccountConfig, from, to time.Time) ([]rawjson.Document, error) {
	return f.read(filepath.Join(f.root, f.bank, "accounts", account.ID+".json"))
}

func (f *FileScraper) FetchCreditCard(ctx context.Context, bank models.BankConfig, account models.AccountConfig, card models.CardConfig, from, to time.Time) ([]rawjson.Document, error) {
	return f.read(filepath.Join(f.root, f.bank, "cards", card.Number+".json"))
}

func (f *FileScraper) read(path string) ([]rawjson.Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f.log.Debug("No payload file, returning empty batch",
			logging.Field{Key: "path", Value: path})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	var documents []rawjson.Document
	if err := json.Unmarshal(data, &documents); err != nil {
		return nil, fmt.Errorf("failed to parse payload file %s: %w", path, err)
	}
	return documents, nil
}
