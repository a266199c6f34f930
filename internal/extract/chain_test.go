package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awhitfield/invoice-cataloger/constants"
)

const usableSample = "TAX INVOICE 1234 Acme Supplies Pty Ltd Total Due 89.95 AUD issued 2025-03-02"

type fakeStrategy struct {
	name  string
	tier  constants.ConfidenceTier
	text  string
	err   error
	calls int
}

func (s *fakeStrategy) Name() string { return s.name }
func (s *fakeStrategy) Tier() constants.ConfidenceTier { return s.tier }
func (s *fakeStrategy) Extract(context.Context, string) (string, int, error) {
	s.calls++
	return s.text, 1, s.err
}

func TestChainOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("first usable strategy wins and later ones never run", func(t *testing.T) {
		first := &fakeStrategy{name: "embedded", tier: constants.TierHigh, text: usableSample}
		second := &fakeStrategy{name: "ocr", tier: constants.TierLow, text: usableSample}

		chain := NewChain(constants.PDF, nil, first, second)
		res, err := chain.Extract(ctx, "x.pdf")
		require.NoError(t, err)

		assert.Equal(t, "embedded", res.Strategy)
		assert.Equal(t, constants.TierHigh, res.Tier)
		assert.Equal(t, 1, first.calls)
		assert.Equal(t, 0, second.calls, "fallback must not run once a strategy succeeds")
		assert.Empty(t, res.Warnings)
	})

	t.Run("failing strategy falls through with a warning", func(t *testing.T) {
		broken := &fakeStrategy{name: "embedded", tier: constants.TierHigh, err: fmt.Errorf("no text layer")}
		backup := &fakeStrategy{name: "layout", tier: constants.TierHigh, text: usableSample}

		chain := NewChain(constants.PDF, nil, broken, backup)
		res, err := chain.Extract(ctx, "x.pdf")
		require.NoError(t, err)

		assert.Equal(t, "layout", res.Strategy)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "embedded")
	})

	t.Run("trivial output falls through like a failure", func(t *testing.T) {
		trivial := &fakeStrategy{name: "embedded", tier: constants.TierHigh, text: "   \n\n  "}
		backup := &fakeStrategy{name: "ocr", tier: constants.TierLow, text: usableSample}

		chain := NewChain(constants.PDF, nil, trivial, backup)
		res, err := chain.Extract(ctx, "x.pdf")
		require.NoError(t, err)

		assert.Equal(t, "ocr", res.Strategy)
		assert.Equal(t, constants.TierLow, res.Tier)
	})

	t.Run("all strategies failing yields empty result with one warning each", func(t *testing.T) {
		a := &fakeStrategy{name: "a", tier: constants.TierHigh, err: fmt.Errorf("boom")}
		b := &fakeStrategy{name: "b", tier: constants.TierLow, text: "xx"}

		chain := NewChain(constants.PDF, nil, a, b)
		res, err := chain.Extract(ctx, "x.pdf")
		require.NoError(t, err)

		assert.True(t, res.Empty())
		assert.Len(t, res.Warnings, 2)
	})
}

func TestRegistryUnknownKind(t *testing.T) {
	r := &Registry{chains: map[constants.FileKind]*Chain{}}
	_, err := r.Extract(context.Background(), constants.FileKind("VIDEO"), "clip.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported_kind")
}

func TestUsableText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"whitespace only", "   \n\t  ", false},
		{"too short", "Total: $5", false},
		{"repetitive decoder noise", strings.Repeat(".-", 40), false},
		{"real invoice text", usableSample, true},
		{"long numeric table", "Item 1 23.00\nItem 2 48.50\nItem 3 110.95\nGST 18.25 Total 200.70", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usableText(tt.in))
		})
	}
}
