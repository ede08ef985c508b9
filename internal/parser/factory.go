package parser

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Provider)
)

// Register makes a provider available under its bank id. Provider packages
// call it from init; registering the same id twice panics, that is a
// programming error.
func Register(bankID string, p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[bankID]; exists {
		panic(fmt.Sprintf("parser: provider %q registered twice", bankID))
	}
	registry[bankID] = p
}

// ForBank returns the provider registered for a bank id.
func ForBank(bankID string) (Provider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[bankID]
	if !ok {
		return nil, fmt.Errorf("parser: no provider registered for bank %q", bankID)
	}
	return p, nil
}

// Registered lists the bank ids with a registered provider, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
