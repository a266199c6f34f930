package fingerprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awhitfield/invoice-cataloger/internal/common"
)

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("identical content yields identical fingerprints regardless of name", func(t *testing.T) {
		a := write("invoice-a.pdf", "the same bytes")
		b := write("renamed-copy.pdf", "the same bytes")

		fpA, err := FromFile(a)
		require.NoError(t, err)
		fpB, err := FromFile(b)
		require.NoError(t, err)

		assert.Equal(t, fpA, fpB)
		assert.Len(t, fpA, 64)
	})

	t.Run("different content yields different fingerprints", func(t *testing.T) {
		a := write("one.pdf", "first document")
		b := write("two.pdf", "second document")

		fpA, err := FromFile(a)
		require.NoError(t, err)
		fpB, err := FromFile(b)
		require.NoError(t, err)

		assert.NotEqual(t, fpA, fpB)
	})

	t.Run("stable across calls", func(t *testing.T) {
		path := write("stable.pdf", "deterministic input")

		first, err := FromFile(path)
		require.NoError(t, err)
		second, err := FromFile(path)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("unreadable file is an unreadable stage error", func(t *testing.T) {
		_, err := FromFile(filepath.Join(dir, "does-not-exist.pdf"))
		require.Error(t, err)

		var se *common.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, common.KindUnreadable, se.Kind)
	})
}

func TestFromBytes(t *testing.T) {
	assert.Equal(t, FromBytes([]byte("abc")), FromBytes([]byte("abc")))
	assert.NotEqual(t, FromBytes([]byte("abc")), FromBytes([]byte("abd")))
}
