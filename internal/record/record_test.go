package record

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	t.Run("financial year spans july to june", func(t *testing.T) {
		w, err := ParseWindow("2024-2025")
		require.NoError(t, err)

		assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), w.Start)
		assert.Equal(t, time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC), w.End)
	})

	t.Run("boundaries are inclusive", func(t *testing.T) {
		w, err := ParseWindow("2024-2025")
		require.NoError(t, err)

		assert.True(t, w.Contains(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, w.Contains(time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)))
		assert.False(t, w.Contains(time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)))
		assert.False(t, w.Contains(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("malformed labels rejected", func(t *testing.T) {
		for _, fy := range []string{"", "2024", "2024/2025", "2024-2026", "abcd-efgh"} {
			_, err := ParseWindow(fy)
			assert.Error(t, err, "label %q", fy)
		}
	})
}

func TestValidate(t *testing.T) {
	window, err := ParseWindow("2024-2025")
	require.NoError(t, err)

	base := func() *StructuredRecord {
		return &StructuredRecord{
			Vendor:       "Acme Supplies",
			DocumentDate: "2025-03-02",
			Total:        decimal.RequireFromString("89.95"),
		}
	}

	t.Run("in-window record has no flags", func(t *testing.T) {
		assert.Empty(t, Validate(base(), window))
	})

	t.Run("date before the window is out_of_period", func(t *testing.T) {
		r := base()
		r.DocumentDate = "2024-05-12"
		flags := Validate(r, window)
		assert.Equal(t, []string{FlagOutOfPeriod}, flags)
	})

	t.Run("date after the window is out_of_period", func(t *testing.T) {
		r := base()
		r.DocumentDate = "2025-07-01"
		assert.Equal(t, []string{FlagOutOfPeriod}, Validate(r, window))
	})

	t.Run("garbage date is unparseable_date, not out_of_period", func(t *testing.T) {
		r := base()
		r.DocumentDate = "sometime in march"
		assert.Equal(t, []string{FlagUnparseableDate}, Validate(r, window))
	})

	t.Run("negative total is negative_amount", func(t *testing.T) {
		r := base()
		r.Total = decimal.RequireFromString("-12.00")
		assert.Equal(t, []string{FlagNegativeAmount}, Validate(r, window))
	})

	t.Run("flags accumulate", func(t *testing.T) {
		r := base()
		r.DocumentDate = "not a date"
		r.Total = decimal.RequireFromString("-1")
		flags := Validate(r, window)
		assert.ElementsMatch(t, []string{FlagUnparseableDate, FlagNegativeAmount}, flags)
	})

	t.Run("HasFlag", func(t *testing.T) {
		r := base()
		r.Flags = []string{FlagOutOfPeriod}
		assert.True(t, r.HasFlag(FlagOutOfPeriod))
		assert.False(t, r.HasFlag(FlagNegativeAmount))
	})
}
