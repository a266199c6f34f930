package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	t.Run("exact category names match case-insensitively", func(t *testing.T) {
		cat, ok := Canonicalize("SoftwareSubscriptions")
		assert.True(t, ok)
		assert.Equal(t, SoftwareSubscriptions, cat)

		cat, ok = Canonicalize("utilities")
		assert.True(t, ok)
		assert.Equal(t, Utilities, cat)
	})

	t.Run("synonyms map onto the closed set", func(t *testing.T) {
		for input, want := range map[string]Category{
			"saas":        SoftwareSubscriptions,
			"electricity": Utilities,
			"internet":    Communications,
			"course":      ProfessionalDevelopment,
			"hardware":    Equipment,
		} {
			cat, ok := Canonicalize(input)
			assert.True(t, ok, input)
			assert.Equal(t, want, cat, input)
		}
	})

	t.Run("unknown input is Other without a match", func(t *testing.T) {
		cat, ok := Canonicalize("completely made up")
		assert.False(t, ok)
		assert.Equal(t, Other, cat)

		cat, ok = Canonicalize("")
		assert.False(t, ok)
		assert.Equal(t, Other, cat)
	})
}

func TestMapExtToKindBasic(t *testing.T) {
	assert.Equal(t, PDF, MapExtToKind(".pdf"))
	assert.Equal(t, PDF, MapExtToKind("PDF"))
	assert.Equal(t, Image, MapExtToKind(".JPG"))
	assert.Equal(t, Document, MapExtToKind("xlsx"))
	assert.Equal(t, Email, MapExtToKind(".eml"))
	assert.Equal(t, FileKind(""), MapExtToKind(".txt"))
}
