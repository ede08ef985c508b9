package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"banking/internal/models"
)

// Metadata tracks when each account or card was last updated. It persists to
// a small YAML file next to the rest of the configuration and gates repeated
// updates through the scheduler's update timeout.
type Metadata struct {
	path string

	mu      sync.Mutex
	updated map[string]time.Time
}

// MetadataKey builds the metadata key for an account or card of a bank,
// shaped {bank}.{account|card}.{identifier}.
func MetadataKey(bankID string, kind models.AccountKind, id string) string {
	token := "account"
	if kind == models.KindBankCreditCard {
		token = "card"
	}
	return fmt.Sprintf("%s.%s.%s", bankID, token, id)
}

// LoadMetadata reads the metadata file. A missing file yields empty metadata.
func LoadMetadata(path string) (*Metadata, error) {
	meta := &Metadata{path: path, updated: make(map[string]time.Time)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var raw map[string]struct {
		Updated string `yaml:"updated"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}
	for key, value := range raw {
		when, err := time.Parse(models.DateLayout, value.Updated)
		if err != nil {
			return nil, fmt.Errorf("invalid update timestamp for %q: %w", key, err)
		}
		meta.updated[key] = when
	}
	return meta, nil
}

// LastUpdated returns when the given key was last updated.
func (m *Metadata) LastUpdated(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	when, ok := m.updated[key]
	return when, ok
}

// MarkUpdated records an update time for the given key and saves the file.
func (m *Metadata) MarkUpdated(key string, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated[key] = when
	return m.save()
}

func (m *Metadata) save() error {
	raw := make(map[string]struct {
		Updated string `yaml:"updated"`
	}, len(m.updated))
	for key, when := range m.updated {
		raw[key] = struct {
			Updated string `yaml:"updated"`
		}{Updated: when.Format(models.DateLayout)}
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}
