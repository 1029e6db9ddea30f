package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Acme Ventures", "acme-ventures"},
		{"Acme   Ventures!!", "acme-ventures"},
		{"ACME VENTURES", "acme-ventures"},
		{"a16z_Crypto -- Fund", "a16z-crypto-fund"},
		{"Sequoia Capital (US)", "sequoia-capital-us"},
		{"First Round.", "first-round"},
		{"  Index\tVentures \n", "index-ventures"},
		{"Y Combinator", "y-combinator"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}

func TestGenerate_PunctuationIsDroppedNotSeparated(t *testing.T) {
	// Characters outside the allowed set vanish rather than becoming hyphens.
	assert.Equal(t, "andreessenhorowitz", Generate("Andreessen&Horowitz"))
	assert.Equal(t, "oreilly-alphatech", Generate("O'Reilly AlphaTech"))
}

func TestGenerate_NonASCIILettersAreDropped(t *testing.T) {
	assert.Equal(t, "caf-capital", Generate("Café Capital"))
}

func TestGenerate_Empty(t *testing.T) {
	assert.Equal(t, "", Generate(""))
	assert.Equal(t, "", Generate("   "))
	assert.Equal(t, "", Generate("!!!"))
	assert.Equal(t, "", Generate("-_-"))
}

func TestGenerate_Idempotent(t *testing.T) {
	for _, name := range []string{"Acme Ventures", "a--b__c", "Foo!Bar"} {
		once := Generate(name)
		assert.Equal(t, once, Generate(once))
	}
}
