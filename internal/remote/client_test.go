package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "://bad"} {
		_, err := NewClient(raw)
		assert.Error(t, err, "url %q", raw)
	}
}

func TestClient_Endpoint(t *testing.T) {
	c, err := NewClient("https://edge.example.com/api/")
	require.NoError(t, err)

	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"default path", "", "https://edge.example.com/api/tasks/data/sum"},
		{"relative override", "/custom/run", "https://edge.example.com/api/custom/run"},
		{"absolute override", "http://other.example.com/x", "http://other.example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := task.Task{ID: "1", Kind: "data", Operation: "sum", RemoteEndpoint: tt.endpoint}
			assert.Equal(t, tt.want, c.Endpoint(tk))
		})
	}
}

func TestClient_Send(t *testing.T) {
	var got taskRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/data/sum", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(taskResponse{Result: 15})
	}, WithToken("secret"))

	value, err := c.Send(context.Background(), task.Task{
		ID:         "t-1",
		Kind:       "data",
		Operation:  "sum",
		Complexity: task.LevelHigh,
		Payload:    map[string]any{"items": []int{1, 2, 3, 4, 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(15), value)
	assert.Equal(t, "t-1", got.ID)
	assert.Equal(t, task.LevelHigh, got.Complexity)
}

func TestClient_SendErrors(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		})
		_, err := c.Send(context.Background(), task.Task{ID: "1", Kind: "k", Operation: "o"})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrRemoteRequest)

		var remoteErr *errors.RemoteError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusServiceUnavailable, remoteErr.StatusCode)
		assert.Contains(t, remoteErr.Error(), "overloaded")
	})

	t.Run("error field in body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(taskResponse{Error: "unsupported operation"})
		})
		_, err := c.Send(context.Background(), task.Task{ID: "1", Kind: "k", Operation: "o"})
		assert.ErrorIs(t, err, errors.ErrRemoteRequest)
		assert.Contains(t, err.Error(), "unsupported operation")
	})

	t.Run("malformed body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		})
		_, err := c.Send(context.Background(), task.Task{ID: "1", Kind: "k", Operation: "o"})
		assert.ErrorIs(t, err, errors.ErrRemoteRequest)
	})

	t.Run("context deadline", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := c.Send(ctx, task.Task{ID: "1", Kind: "k", Operation: "o"})
		assert.ErrorIs(t, err, errors.ErrRemoteRequest)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_SyncBatch(t *testing.T) {
	var got syncRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SyncPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	c.newBatchID = func() string { return "batch-1" }

	batchID, acked, err := c.SyncBatch(context.Background(), map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", batchID)
	assert.Equal(t, []string{"a", "b"}, acked, "empty acknowledgement accepts the whole batch")
	assert.Equal(t, "batch-1", got.BatchID)
	assert.Len(t, got.Results, 2)
}

func TestClient_SyncBatchPartialAck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(syncResponse{Acknowledged: []string{"b", "zz"}})
	})

	_, acked, err := c.SyncBatch(context.Background(), map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, acked)
}

func TestClient_SyncBatchFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, acked, err := c.SyncBatch(context.Background(), map[string]any{"a": 1})
	assert.ErrorIs(t, err, errors.ErrRemoteRequest)
	assert.Empty(t, acked)
}

func TestClient_SyncBatchEmpty(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, acked, err := c.SyncBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, acked)
	assert.False(t, called)
}
