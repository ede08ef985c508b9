package textutils_test

import (
	"testing"

	"banking/internal/textutils"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"accents are folded", "Devolución Declaració", "DEVOLUCION DECLARACIO"},
		{"already ascii", "paypal molskine", "PAYPAL MOLSKINE"},
		{"non ascii symbols dropped", "caf€ ñoño", "CAF NONO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutils.Normalize(tt.input))
		})
	}
}

func TestCleanup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dots removed without split", "NEXIONA S.L.", "NEXIONA SL"},
		{"symbols become spaces", "PAYPAL *MOLESKINE", "PAYPAL MOLESKINE"},
		{"spaces collapse", "A   B    C", "A B C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutils.Cleanup(tt.input))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	keywords := textutils.ExtractKeywords([]string{
		"Transferencia de NEXIONA S.L.",
		"PAGO EN E.S. REPSOL",
		"de", // too short once tokenized
	})

	assert.Equal(t, []string{"NEXIONA", "PAGO", "REPSOL", "TRANSFERENCIA"}, keywords)
}

func TestExtractKeywordsDropsShortTokens(t *testing.T) {
	keywords := textutils.ExtractKeywords([]string{"AB CD EFG"})
	assert.Equal(t, []string{"EFG"}, keywords)
}

func TestExtractKeywordsIsDeterministic(t *testing.T) {
	input := []string{"PAGO CON TARJETA", "TARJETA PAGO REPSOL"}
	first := textutils.ExtractKeywords(input)
	second := textutils.ExtractKeywords(input)
	assert.Equal(t, first, second)
}
