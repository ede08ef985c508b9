package bbvaparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking/internal/parser"
)

func TestProviderRegistered(t *testing.T) {
	provider, err := parser.ForBank(BankID)
	require.NoError(t, err)
	assert.Same(t, defaultParser, provider)
}
