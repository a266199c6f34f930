// Package cache persists structured records keyed by content fingerprint.
// Entries are immutable once written: a conflicting rewrite for the same
// fingerprint is an error unless explicitly forced, so a flaky model can
// never silently change an already-cataloged expense.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/record"
)

// Entry is one cached catalog row.
type Entry struct {
	Fingerprint string
	Record      record.StructuredRecord
	WrittenAt   time.Time
}

// Store is the catalog cache. Put is idempotent for an identical record and
// a write_conflict error for a differing one; ForcePut is last-writer-wins.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	ForcePut(ctx context.Context, entry Entry) error
	All(ctx context.Context) ([]Entry, error)
	Close() error
}

// conflictError builds the write_conflict stage error for a fingerprint.
func conflictError(fingerprint string) error {
	return common.NewStageError(constants.StageValidation, common.KindWriteConflict,
		fmt.Errorf("fingerprint %s already cached with different content", fingerprint))
}

// SameContent compares two records by their extracted substance, ignoring
// per-run provenance. Two runs over the same bytes produce fresh IDs and
// timestamps, and a duplicate file carries a different path; none of that
// makes the cached expense wrong.
func SameContent(a, b record.StructuredRecord) bool {
	normalize := func(r record.StructuredRecord) record.StructuredRecord {
		r.ID = ""
		r.SourcePath = ""
		r.ProcessedAt = time.Time{}
		return r
	}
	aj, errA := json.Marshal(normalize(a))
	bj, errB := json.Marshal(normalize(b))
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// KeyedLock serializes work per fingerprint so two workers holding identical
// content trigger only one extraction and one model call between them.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-key mutex and returns its unlock func.
func (k *KeyedLock) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
