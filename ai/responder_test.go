package ai

import (
	apperrors "chat-bridge/errors"

	"chat-bridge/contract"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testTurns() []contract.Turn {
	return []contract.Turn{
		{Role: "system", Content: "stay neutral"},
		{Role: "user", Content: "hello"},
	}
}

func TestReply_Success(t *testing.T) {
	req := require.New(t)
	server := completionServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"hello back"},"finish_reason":"stop"}]}`)

	responder := NewResponder(server.URL, "test-key", "test-model", time.Second, slog.Default())
	reply, err := responder.Reply(context.Background(), testTurns())
	req.NoError(err)
	req.Equal("hello back", reply)
}

func TestReply_SendsModelAndTurns(t *testing.T) {
	req := require.New(t)
	var got completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	t.Cleanup(server.Close)

	responder := NewResponder(server.URL, "test-key", "test-model", time.Second, slog.Default())
	_, err := responder.Reply(context.Background(), testTurns())
	req.NoError(err)
	req.Equal("test-model", got.Model)
	req.Len(got.Messages, 2)
	req.Equal("system", got.Messages[0].Role)
	req.Equal("hello", got.Messages[1].Content)
}

func TestReply_APIError(t *testing.T) {
	req := require.New(t)
	server := completionServer(t, http.StatusBadRequest,
		`{"error":{"message":"maximum context length exceeded"}}`)

	responder := NewResponder(server.URL, "test-key", "test-model", time.Second, slog.Default())
	_, err := responder.Reply(context.Background(), testTurns())
	req.Error(err)
	req.Contains(err.Error(), "maximum context length exceeded")
	req.True(IsTokenLimit(err))
}

func TestReply_EmptyChoices(t *testing.T) {
	req := require.New(t)
	server := completionServer(t, http.StatusOK, `{"choices":[]}`)

	responder := NewResponder(server.URL, "test-key", "test-model", time.Second, slog.Default())
	_, err := responder.Reply(context.Background(), testTurns())
	req.ErrorIs(err, apperrors.ErrEmptyReply)
}

func TestReply_ContextCancelled(t *testing.T) {
	req := require.New(t)
	server := completionServer(t, http.StatusOK, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	responder := NewResponder(server.URL, "test-key", "test-model", time.Second, slog.Default())
	_, err := responder.Reply(ctx, testTurns())
	req.Error(err)
}

func TestIsTokenLimit(t *testing.T) {
	req := require.New(t)
	req.True(IsTokenLimit(&apiError{status: http.StatusBadRequest, message: "too big"}))
	req.False(IsTokenLimit(&apiError{status: http.StatusInternalServerError, message: "boom"}))
	req.True(IsTokenLimit(fmt.Errorf("maximum context length exceeded")))
	req.True(IsTokenLimit(fmt.Errorf("token budget blown")))
	req.False(IsTokenLimit(fmt.Errorf("connection refused")))
	req.False(IsTokenLimit(nil))
}
