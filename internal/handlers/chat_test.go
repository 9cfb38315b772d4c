package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelfeliz/chat-nov9/internal/app"
	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	"github.com/raphaelfeliz/chat-nov9/internal/common/config"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/extraction"
	"github.com/raphaelfeliz/chat-nov9/internal/notify"
	"github.com/raphaelfeliz/chat-nov9/internal/session"
	"github.com/raphaelfeliz/chat-nov9/internal/store"
)

// staticExtractor answers every utterance with the same result.
type staticExtractor struct {
	result *extraction.Result
}

func (s *staticExtractor) Extract(context.Context, string) (*extraction.Result, error) {
	if s.result == nil {
		return &extraction.Result{}, nil
	}
	return s.result, nil
}

func newTestServer(t *testing.T, extractor extraction.Extractor) *fiber.App {
	t.Helper()

	log := logger.NewTestLogger(t)
	registry := session.NewRegistry(
		catalog.NewIndex(catalog.DefaultProducts()),
		extractor,
		store.NewMemoryStore(),
		notify.Noop{},
		"5511999999999",
		log,
	)

	return app.NewServer(&app.App{
		Config:   &config.Config{App: config.AppConfig{Name: "test"}},
		Log:      log,
		Registry: registry,
		Hub:      session.NewHub(log),
	})
}

func postJSON(t *testing.T, srv *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, srv *fiber.App, path string, out interface{}) *http.Response {
	t.Helper()
	resp, err := srv.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return resp
}

type timelineResponse struct {
	Session  string              `json:"session"`
	Messages []store.ChatMessage `json:"messages"`
}

func TestSendMessage_EndToEnd(t *testing.T) {
	cat := "window"
	srv := newTestServer(t, &staticExtractor{result: &extraction.Result{Category: &cat}})

	resp := postJSON(t, srv, "/api/chat/s1/messages", map[string]string{"text": "a window please"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body timelineResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, "s1", body.Session)
	// Boot question, user message, follow-up question.
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "a window please", body.Messages[1].Text)
	assert.Equal(t, store.VariantOutgoing, body.Messages[1].Variant)
}

func TestSendMessage_BadBody(t *testing.T) {
	srv := newTestServer(t, &staticExtractor{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/s1/messages", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTimeline_BootsSession(t *testing.T) {
	srv := newTestServer(t, &staticExtractor{})

	var body timelineResponse
	resp := getJSON(t, srv, "/api/chat/s2/timeline", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, body.Messages, 1)
	assert.Equal(t, "What are you looking for, a door or a window?", body.Messages[0].Text)
}

func TestConfigurator_SelectAndState(t *testing.T) {
	srv := newTestServer(t, &staticExtractor{})

	resp := postJSON(t, srv, "/api/configurator/s3/select", map[string]string{
		"facet": "category", "value": "window",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state struct {
		Assignment map[string]string `json:"assignment"`
		Question   *struct {
			Facet string `json:"facet"`
		} `json:"question"`
	}
	getJSON(t, srv, "/api/configurator/s3", &state)

	assert.Equal(t, "window", state.Assignment["category"])
	require.NotNil(t, state.Question)
	assert.Equal(t, "system", state.Question.Facet)
}

func TestConfigurator_SelectRejectsUnknownValue(t *testing.T) {
	srv := newTestServer(t, &staticExtractor{})

	resp := postJSON(t, srv, "/api/configurator/s4/select", map[string]string{
		"facet": "category", "value": "garage",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestConfigurator_Reset(t *testing.T) {
	srv := newTestServer(t, &staticExtractor{})

	postJSON(t, srv, "/api/configurator/s5/select", map[string]string{
		"facet": "category", "value": "door",
	})
	resp := postJSON(t, srv, "/api/configurator/s5/reset", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state struct {
		Assignment map[string]string `json:"assignment"`
	}
	getJSON(t, srv, "/api/configurator/s5", &state)
	assert.Empty(t, state.Assignment["category"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &staticExtractor{})

	var body map[string]interface{}
	resp := getJSON(t, srv, "/health", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
