package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awhitfield/invoice-cataloger/internal/common"
	"github.com/awhitfield/invoice-cataloger/internal/resilience"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func testClient(endpoint string) *Client {
	exec := resilience.NewExecutor(resilience.Config{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		BreakerEnabled: false,
	}, nil)
	return NewClient(common.LLMConfig{
		Endpoint:       endpoint,
		Model:          "test-model",
		Timeout:        2 * time.Second,
		RequestsPerSec: 1000,
	}, exec, nil)
}

func TestClientStructure(t *testing.T) {
	ctx := context.Background()

	goodJSON := `{"vendor":"Acme Supplies","document_date":"2025-03-02","currency":"AUD","total_amount":"89.95","category_hint":"SoftwareSubscriptions"}`

	t.Run("happy path with fenced output", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req.Model)
			require.Len(t, req.Messages, 2)

			chatReply(t, w, "```json\n"+goodJSON+"\n```")
		}))
		defer srv.Close()

		fields, raw, err := testClient(srv.URL).Structure(ctx, "TAX INVOICE ...")
		require.NoError(t, err)

		assert.Equal(t, "Acme Supplies", fields.Vendor)
		assert.Equal(t, "89.95", fields.TotalAmount)
		assert.Equal(t, "AUD", fields.Currency)
		assert.NotEmpty(t, raw)
	})

	t.Run("5xx retried until success", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				http.Error(w, "loading model", http.StatusServiceUnavailable)
				return
			}
			chatReply(t, w, goodJSON)
		}))
		defer srv.Close()

		fields, _, err := testClient(srv.URL).Structure(ctx, "text")
		require.NoError(t, err)
		assert.Equal(t, "Acme Supplies", fields.Vendor)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("5xx exhausting attempts is service_unavailable", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "down", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, _, err := testClient(srv.URL).Structure(ctx, "text")
		require.Error(t, err)

		var se *common.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, common.KindServiceUnavailable, se.Kind)
		assert.Equal(t, int32(3), calls.Load(), "transient failures use every attempt")
	})

	t.Run("malformed model output is invalid_json and never retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			chatReply(t, w, "I'm sorry, I cannot find any invoice data here.")
		}))
		defer srv.Close()

		_, _, err := testClient(srv.URL).Structure(ctx, "text")
		require.Error(t, err)

		var se *common.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, common.KindInvalidJSON, se.Kind)
		assert.Equal(t, int32(1), calls.Load(), "deterministic failures must not burn retries")
	})

	t.Run("missing required field is missing_field", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chatReply(t, w, `{"vendor":"Acme","document_date":"2025-03-02","currency":"AUD"}`)
		}))
		defer srv.Close()

		_, _, err := testClient(srv.URL).Structure(ctx, "text")
		require.Error(t, err)

		var se *common.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, common.KindMissingField, se.Kind)
	})

	t.Run("connection refused is service_unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		endpoint := srv.URL
		srv.Close()

		_, _, err := testClient(endpoint).Structure(ctx, "text")
		require.Error(t, err)

		var se *common.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, common.KindServiceUnavailable, se.Kind)
	})
}
