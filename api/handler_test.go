package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChat records calls and returns canned answers.
type fakeChat struct {
	answer     string
	processErr error
	clearErr   error
	userID     string
	input      string
	cleared    []string
}

func (c *fakeChat) ProcessMessage(ctx context.Context, userID, input string) (string, error) {
	c.userID = userID
	c.input = input
	if c.processErr != nil {
		return "", c.processErr
	}
	return c.answer, nil
}

func (c *fakeChat) ClearHistory(ctx context.Context, userID string) error {
	c.cleared = append(c.cleared, userID)
	return c.clearErr
}

func newTestServer(t *testing.T, chat *fakeChat, origins ...string) *httptest.Server {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	srv := httptest.NewServer(NewHandler(chat, nil).Routes(origins))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestChatEndpoint(t *testing.T) {
	chat := &fakeChat{answer: "Доброго дня! Чим можу допомогти?"}
	srv := newTestServer(t, chat)

	resp := postJSON(t, srv.URL+"/chat", `{"user_id":"u1","input":"Привіт"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Доброго дня! Чим можу допомогти?", body["response"])
	assert.Equal(t, "u1", chat.userID)
	assert.Equal(t, "Привіт", chat.input)
}

func TestChatValidation(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	srv := newTestServer(t, chat)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing user_id", body: `{"input":"Привіт"}`},
		{name: "blank user_id", body: `{"user_id":"  ","input":"Привіт"}`},
		{name: "missing input", body: `{"user_id":"u1"}`},
		{name: "invalid json", body: `{user_id}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestChatInternalErrorIsOpaque(t *testing.T) {
	chat := &fakeChat{processErr: fmt.Errorf("llm timeout: secret-internal-detail")}
	srv := newTestServer(t, chat)

	resp := postJSON(t, srv.URL+"/chat", `{"user_id":"u1","input":"Привіт"}`)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "failed to process message", body["error"])
	assert.NotContains(t, body["error"], "secret-internal-detail")
}

func TestClearHistoryEndpoint(t *testing.T) {
	chat := &fakeChat{}
	srv := newTestServer(t, chat)

	resp := postJSON(t, srv.URL+"/clear_history", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Chat history cleared.", body["message"])
	assert.Equal(t, []string{"u1"}, chat.cleared)
}

func TestClearHistoryFailure(t *testing.T) {
	chat := &fakeChat{clearErr: fmt.Errorf("disk full")}
	srv := newTestServer(t, chat)

	resp := postJSON(t, srv.URL+"/clear_history", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeChat{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	srv := newTestServer(t, chat, "https://shop.example")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat",
		strings.NewReader(`{"user_id":"u1","input":"Привіт"}`))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://shop.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	chat := &fakeChat{answer: "ok"}
	srv := newTestServer(t, chat, "https://shop.example")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat",
		strings.NewReader(`{"user_id":"u1","input":"Привіт"}`))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	chat := &fakeChat{}
	srv := newTestServer(t, chat, "*")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://anywhere.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://anywhere.example", resp.Header.Get("Access-Control-Allow-Origin"))
	// Wildcard matches never grant credentials.
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}
