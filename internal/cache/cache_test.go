package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awhitfield/invoice-cataloger/constants"
	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/record"
)

func sampleRecord(fingerprint string) record.StructuredRecord {
	return record.StructuredRecord{
		ID:           "run-1-id",
		Fingerprint:  fingerprint,
		SourcePath:   "/in/invoice.pdf",
		Vendor:       "Acme Supplies",
		DocumentDate: "2025-03-02",
		Currency:     "AUD",
		Total:        decimal.RequireFromString("89.95"),
		Category:     constants.SoftwareSubscriptions,
		Deductible:   decimal.RequireFromString("53.97"),
		ProcessedAt:  time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

// storeUnderTest runs the same contract against both backends.
func storeUnderTest(t *testing.T, name string) Store {
	t.Helper()
	switch name {
	case "memory":
		return NewMemoryStore()
	case "sqlite":
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	default:
		t.Fatalf("unknown store %q", name)
		return nil
	}
}

func TestStoreContract(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get miss returns nil", func(t *testing.T) {
				s := storeUnderTest(t, backend)
				entry, err := s.Get(ctx, "absent")
				require.NoError(t, err)
				assert.Nil(t, entry)
			})

			t.Run("put then get round trips", func(t *testing.T) {
				s := storeUnderTest(t, backend)
				rec := sampleRecord("fp-1")
				require.NoError(t, s.Put(ctx, Entry{Fingerprint: "fp-1", Record: rec}))

				entry, err := s.Get(ctx, "fp-1")
				require.NoError(t, err)
				require.NotNil(t, entry)
				assert.Equal(t, "Acme Supplies", entry.Record.Vendor)
				assert.True(t, entry.Record.Total.Equal(rec.Total))
				assert.False(t, entry.WrittenAt.IsZero())
			})

			t.Run("put is idempotent when only provenance differs", func(t *testing.T) {
				s := storeUnderTest(t, backend)
				require.NoError(t, s.Put(ctx, Entry{Fingerprint: "fp-2", Record: sampleRecord("fp-2")}))

				rerun := sampleRecord("fp-2")
				rerun.ID = "run-2-id"
				rerun.SourcePath = "/in/copy-of-invoice.pdf"
				rerun.ProcessedAt = time.Now().UTC()
				assert.NoError(t, s.Put(ctx, Entry{Fingerprint: "fp-2", Record: rerun}))
			})

			t.Run("conflicting rewrite is a write_conflict", func(t *testing.T) {
				s := storeUnderTest(t, backend)
				require.NoError(t, s.Put(ctx, Entry{Fingerprint: "fp-3", Record: sampleRecord("fp-3")}))

				changed := sampleRecord("fp-3")
				changed.Vendor = "Different Vendor Entirely"
				err := s.Put(ctx, Entry{Fingerprint: "fp-3", Record: changed})
				require.Error(t, err)

				_, kind := common.ClassifyError(err)
				assert.Equal(t, common.KindWriteConflict, kind)

				// original entry untouched
				entry, err := s.Get(ctx, "fp-3")
				require.NoError(t, err)
				assert.Equal(t, "Acme Supplies", entry.Record.Vendor)
			})

			t.Run("force put overwrites", func(t *testing.T) {
				s := storeUnderTest(t, backend)
				require.NoError(t, s.Put(ctx, Entry{Fingerprint: "fp-4", Record: sampleRecord("fp-4")}))

				changed := sampleRecord("fp-4")
				changed.Vendor = "Corrected Vendor"
				require.NoError(t, s.ForcePut(ctx, Entry{Fingerprint: "fp-4", Record: changed}))

				entry, err := s.Get(ctx, "fp-4")
				require.NoError(t, err)
				assert.Equal(t, "Corrected Vendor", entry.Record.Vendor)
			})

			t.Run("all returns entries sorted by fingerprint", func(t *testing.T) {
				s := storeUnderTest(t, backend)
				for _, fp := range []string{"fp-c", "fp-a", "fp-b"} {
					require.NoError(t, s.Put(ctx, Entry{Fingerprint: fp, Record: sampleRecord(fp)}))
				}

				entries, err := s.All(ctx)
				require.NoError(t, err)
				require.Len(t, entries, 3)
				assert.Equal(t, "fp-a", entries[0].Fingerprint)
				assert.Equal(t, "fp-c", entries[2].Fingerprint)
			})
		})
	}
}

func TestKeyedLock(t *testing.T) {
	t.Run("same key serializes", func(t *testing.T) {
		locks := NewKeyedLock()

		var inCritical, maxInCritical int
		var mu sync.Mutex
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.Lock("shared")
				defer unlock()

				mu.Lock()
				inCritical++
				if inCritical > maxInCritical {
					maxInCritical = inCritical
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inCritical--
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, maxInCritical, "only one goroutine may hold a key at a time")
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		locks := NewKeyedLock()

		unlockA := locks.Lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlockB := locks.Lock("b")
			unlockB()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("lock on a different key blocked")
		}
	})
}
