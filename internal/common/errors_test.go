package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/awhitfield/invoice-cataloger/constants"
)

func TestStageError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewStageError(constants.StageStructuring, KindServiceUnavailable, cause)

	t.Run("message carries stage and kind", func(t *testing.T) {
		assert.Contains(t, err.Error(), "STRUCTURING/service_unavailable")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unwraps to the cause", func(t *testing.T) {
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("classification survives wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("processing invoice.pdf: %w", err)
		stage, kind := ClassifyError(wrapped)
		assert.Equal(t, constants.StageStructuring, stage)
		assert.Equal(t, KindServiceUnavailable, kind)
	})
}

func TestIsTransient(t *testing.T) {
	transient := []ErrorKind{KindTimeout, KindServiceUnavailable}
	for _, kind := range transient {
		err := NewStageError(constants.StageStructuring, kind, fmt.Errorf("x"))
		assert.True(t, IsTransient(err), string(kind))
	}

	terminal := []ErrorKind{KindInvalidJSON, KindMissingField, KindUnreadable, KindNoText, KindUnsupportedKind, KindWriteConflict}
	for _, kind := range terminal {
		err := NewStageError(constants.StageExtraction, kind, fmt.Errorf("x"))
		assert.False(t, IsTransient(err), string(kind))
	}

	assert.False(t, IsTransient(fmt.Errorf("plain error")))
	assert.False(t, IsTransient(nil))
}
