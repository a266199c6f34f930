// Package fingerprint computes stable content fingerprints for source files.
// The fingerprint is a function of file bytes only, never path or metadata,
// so identical content under different names yields the same fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
)

// FromFile returns the hex-encoded SHA-256 of the file contents.
// Unreadable files surface as an extraction failure of kind "unreadable".
func FromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", common.NewStageError(constants.StageExtraction, common.KindUnreadable, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", common.NewStageError(constants.StageExtraction, common.KindUnreadable, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FromBytes returns the hex-encoded SHA-256 of b.
func FromBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
