package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/schema"
)

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }

// fullResponse renders an eleven-key response body with every key present,
// nil values emitted as JSON null.
func fullResponse(overrides map[string]interface{}) string {
	body := map[string]interface{}{
		"category":            nil,
		"system":              nil,
		"blind":               nil,
		"blindMotorization":   nil,
		"material":            nil,
		"panelCount":          nil,
		"knowledgeBaseAnswer": nil,
		"userName":            nil,
		"userEmail":           nil,
		"userPhone":           nil,
		"wantsHuman":          nil,
	}
	for k, v := range overrides {
		body[k] = v
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return c
}

func TestExtract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "a sliding window with a blind", reqBody["userInput"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fullResponse(map[string]interface{}{
			"category": "window",
			"system":   "sliding-window",
			"blind":    "yes",
		})))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	result, err := client.Extract(context.Background(), "a sliding window with a blind")
	require.NoError(t, err)

	facets := result.Facets()
	assert.Equal(t, "window", facets[schema.KeyCategory])
	assert.Equal(t, "sliding-window", facets[schema.KeySystem])
	assert.Equal(t, "yes", facets[schema.KeyBlind])
	_, hasMaterial := facets[schema.KeyMaterial]
	assert.False(t, hasMaterial)
	assert.False(t, result.HandoverRequested())
}

func TestExtract_MissingKeyViolatesContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// wantsHuman missing entirely.
		w.Write([]byte(`{"category":"window","system":null,"blind":null,"blindMotorization":null,"material":null,"panelCount":null,"knowledgeBaseAnswer":null,"userName":null,"userEmail":null,"userPhone":null}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	_, err := client.Extract(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	_, err := client.Extract(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(fullResponse(map[string]interface{}{"wantsHuman": true})))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	result, err := client.Extract(context.Background(), "talk to a human")
	require.NoError(t, err)
	assert.True(t, result.HandoverRequested())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestExtract_ExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	_, err := client.Extract(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

func TestExtract_ContextCancelIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(fullResponse(nil)))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := newTestClient(t, server.URL, 0)
	_, err := client.Extract(ctx, "hi")
	assert.ErrorIs(t, err, ErrExtractionTimeout)
}

func TestExtract_CancelDuringResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Cancel before replying: whether the response makes it back or the
		// transport aborts first, the caller sees a timeout and no body is
		// left open.
		cancel()
		w.Write([]byte(fullResponse(nil)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	_, err := client.Extract(ctx, "hi")
	assert.ErrorIs(t, err, ErrExtractionTimeout)
}

func TestResult_CleansNullForms(t *testing.T) {
	r := &Result{
		Category:            strptr("null"),
		System:              strptr("  "),
		Material:            strptr(" glass "),
		KnowledgeBaseAnswer: strptr("null"),
		UserName:            strptr("Ana"),
		WantsHuman:          boolptr(false),
	}

	facets := r.Facets()
	_, hasCategory := facets[schema.KeyCategory]
	assert.False(t, hasCategory, `literal "null" is absence`)
	_, hasSystem := facets[schema.KeySystem]
	assert.False(t, hasSystem, "whitespace is absence")
	assert.Equal(t, "glass", facets[schema.KeyMaterial], "values are trimmed")

	assert.Empty(t, r.Answer())
	assert.Equal(t, "Ana", r.Name())
	assert.Empty(t, r.Email())
	assert.False(t, r.HandoverRequested(), "explicit false is not a request")
}
