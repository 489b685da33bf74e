package agentapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/tuft-client/internal/handler"
	"github.com/zhouzirui/tuft-client/internal/service/agentapi"
	chatservice "github.com/zhouzirui/tuft-client/internal/service/chat"
	"github.com/zhouzirui/tuft-client/internal/service/responder"
	"github.com/zhouzirui/tuft-client/internal/service/session"
)

func newAgentServer(t *testing.T) *httptest.Server {
	t.Helper()
	chatSvc := chatservice.NewService()
	srv := httptest.NewServer(handler.NewRouter(chatSvc, responder.New(chatSvc), nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateThreadAndRun(t *testing.T) {
	srv := newAgentServer(t)
	client := agentapi.NewClient(srv.URL + "/")
	assert.Equal(t, srv.URL, client.BaseURL())

	ctx := context.Background()
	threadID, err := client.CreateThread(ctx, map[string]any{"purpose": "conversation"})
	require.NoError(t, err)
	require.NotEmpty(t, threadID)

	raw, err := client.RunWait(ctx, threadID, session.BuildRequestBody("agent", "hello", nil), "req-1")
	require.NoError(t, err)

	body, ok := raw.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, body, "output")
}

func TestRunWaitDecodesNumbersExactly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-7", r.Header.Get(agentapi.RequestIDHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"score": 12345678901234567890}`))
	}))
	defer srv.Close()

	raw, err := agentapi.NewClient(srv.URL).RunWait(context.Background(), "t", map[string]any{}, "req-7")
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567890"), raw.(map[string]any)["score"])
}

func TestRunWaitUnknownThreadIsTransportError(t *testing.T) {
	srv := newAgentServer(t)
	client := agentapi.NewClient(srv.URL)

	_, err := client.RunWait(context.Background(), "missing", session.BuildRequestBody("agent", "hi", nil), "")

	var apiErr *agentapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "thread not found")
	assert.Contains(t, err.Error(), "status 404")
}

func TestRunWaitAssistantMismatchIsInBand(t *testing.T) {
	srv := newAgentServer(t)
	client := agentapi.NewClient(srv.URL)
	ctx := context.Background()

	threadID, err := client.CreateThread(ctx, nil)
	require.NoError(t, err)

	raw, err := client.RunWait(ctx, threadID, session.BuildRequestBody("nobody", "hi", nil), "")
	require.NoError(t, err)
	assert.Contains(t, raw.(map[string]any), "__error__")
}

func TestRunWaitUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	defer srv.Close()

	_, err := agentapi.NewClient(srv.URL).RunWait(context.Background(), "t", map[string]any{}, "")

	var apiErr *agentapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
	assert.ErrorContains(t, err, "decode response")
}

func TestCreateThreadMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := agentapi.NewClient(srv.URL).CreateThread(context.Background(), nil)
	assert.ErrorContains(t, err, "no thread_id")
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := agentapi.NewClient(url).CreateThread(context.Background(), nil)

	var apiErr *agentapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Error(t, apiErr.Unwrap())
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := agentapi.NewClient(srv.URL, agentapi.WithTimeout(50*time.Millisecond))
	_, err := client.RunWait(context.Background(), "t", map[string]any{}, "")

	var apiErr *agentapi.Error
	require.ErrorAs(t, err, &apiErr)
}

func TestContextCancelled(t *testing.T) {
	srv := newAgentServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agentapi.NewClient(srv.URL).CreateThread(ctx, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}
