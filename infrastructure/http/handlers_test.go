package http

import (
	"bytes"
	"chat-bridge/auth"
	"chat-bridge/domain"
	"chat-bridge/mocks"
	"chat-bridge/repositories"
	"chat-bridge/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "test_secret_key_long_enough_2026"

type fixture struct {
	router    *gin.Engine
	responder *mocks.MockIResponder
	rooms     repositories.RoomRepository
	messages  repositories.MessageRepository
	tokens    *auth.TokenManager
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rooms := repositories.NewRoomRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	responder := mocks.NewMockIResponder(gomock.NewController(t))

	roomService := services.NewRoomService(rooms, messages, log, 1, time.Millisecond)
	chatService := services.NewChatService(rooms, messages, responder, nil, nil, log, 220, time.Millisecond, 40, 15)
	dispatchService := services.NewDispatchService(rooms, messages, log, services.OpeningPrompt)
	tokens := auth.NewTokenManager(testSecret)

	handler := NewHandler(roomService, chatService, dispatchService, nil, log)
	router := NewRouter(handler, tokens, prometheus.NewRegistry())
	return &fixture{router: router, responder: responder, rooms: rooms, messages: messages, tokens: tokens}
}

func (f *fixture) request(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAllocateEndpoint_HandsOutJoinableIdentity(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	rec := f.request(t, http.MethodPost, "/api/rooms", "", nil)
	req.Equal(http.StatusOK, rec.Code)

	var resp map[string]string
	req.NoError(json.NewDecoder(rec.Body).Decode(&resp))
	req.True(domain.ValidRoomCode(resp["code"]))
	req.NotEmpty(resp["userId"])

	rec = f.request(t, http.MethodPost, "/api/rooms/join",
		`{"code":"`+resp["code"]+`","userId":"`+resp["userId"]+`"}`, nil)
	req.Equal(http.StatusOK, rec.Code)
}

func TestJoinEndpoint(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	rec := f.request(t, http.MethodPost, "/api/rooms/join",
		`{"code":"CHAT-042","userId":"u1","model":"narrative","role":"child"}`, nil)
	req.Equal(http.StatusOK, rec.Code)

	var resp map[string]any
	req.NoError(json.NewDecoder(rec.Body).Decode(&resp))
	req.Equal("CHAT-042", resp["code"])
	req.Equal(float64(1), resp["occupancy"])
	req.Equal(float64(domain.RoomCapacity), resp["capacity"])
}

func TestJoinEndpoint_RejectsBadCode(t *testing.T) {
	f := setup(t)
	rec := f.request(t, http.MethodPost, "/api/rooms/join",
		`{"code":"ROOM-42","userId":"u1"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinEndpoint_FullRoomConflicts(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	for _, user := range []string{"u1", "u2", "u3"} {
		rec := f.request(t, http.MethodPost, "/api/rooms/join",
			`{"code":"CHAT-042","userId":"`+user+`"}`, nil)
		req.Equal(http.StatusOK, rec.Code)
	}
	rec := f.request(t, http.MethodPost, "/api/rooms/join",
		`{"code":"CHAT-042","userId":"u4"}`, nil)
	req.Equal(http.StatusConflict, rec.Code)
}

func TestStatusEndpoint_UnknownRoomIsNotAnError(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	rec := f.request(t, http.MethodGet, "/api/rooms/CHAT-404/status", "", nil)
	req.Equal(http.StatusOK, rec.Code)

	var report domain.StatusReport
	req.NoError(json.NewDecoder(rec.Body).Decode(&report))
	req.False(report.Exists)
	req.Equal(domain.StatusWaiting, report.Status)
}

func TestMessagesEndpoint_RequiresUserID(t *testing.T) {
	f := setup(t)
	rec := f.request(t, http.MethodGet, "/api/rooms/CHAT-042/messages", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEndpoint_RoundTrip(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	for _, user := range []string{"u1", "u2"} {
		f.request(t, http.MethodPost, "/api/rooms/join",
			`{"code":"CHAT-042","userId":"`+user+`"}`, nil)
	}
	f.responder.EXPECT().Reply(gomock.Any(), gomock.Any()).Return("a reply", nil)

	rec := f.request(t, http.MethodPost, "/api/rooms/CHAT-042/messages",
		`{"userId":"u1","text":"hello"}`, nil)
	req.Equal(http.StatusOK, rec.Code)

	var resp struct {
		Replies []domain.Message `json:"replies"`
	}
	req.NoError(json.NewDecoder(rec.Body).Decode(&resp))
	req.Len(resp.Replies, 1)
	req.Equal("a reply", resp.Replies[0].Content)

	// The other member sees neither u1's submission nor u1's reply.
	rec = f.request(t, http.MethodGet, "/api/rooms/CHAT-042/messages?userId=u2", "", nil)
	req.Equal(http.StatusOK, rec.Code)
	var view struct {
		Messages []domain.Message `json:"messages"`
	}
	req.NoError(json.NewDecoder(rec.Body).Decode(&view))
	req.Empty(view.Messages)
}

func TestSendEndpoint_LonelyRoomConflicts(t *testing.T) {
	f := setup(t)
	f.request(t, http.MethodPost, "/api/rooms/join", `{"code":"CHAT-042","userId":"u1"}`, nil)

	rec := f.request(t, http.MethodPost, "/api/rooms/CHAT-042/messages",
		`{"userId":"u1","text":"hello"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDispatchEndpoint(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	for _, user := range []string{"u1", "u2"} {
		f.request(t, http.MethodPost, "/api/rooms/join",
			`{"code":"CHAT-042","userId":"`+user+`"}`, nil)
	}

	rec := f.request(t, http.MethodPost, "/api/rooms/CHAT-042/dispatch", "", nil)
	req.Equal(http.StatusOK, rec.Code)
	var result map[string]any
	req.NoError(json.NewDecoder(rec.Body).Decode(&result))
	req.Equal(true, result["dispatched"])

	rec = f.request(t, http.MethodPost, "/api/rooms/CHAT-042/dispatch", "", nil)
	req.Equal(http.StatusOK, rec.Code)
	result = map[string]any{}
	req.NoError(json.NewDecoder(rec.Body).Decode(&result))
	req.Equal("already_exists", result["reason"])
}

func TestAdminEnd_RequiresToken(t *testing.T) {
	req := require.New(t)
	f := setup(t)
	f.request(t, http.MethodPost, "/api/rooms/join", `{"code":"CHAT-042","userId":"u1"}`, nil)

	rec := f.request(t, http.MethodPost, "/admin/rooms/CHAT-042/end", "", nil)
	req.Equal(http.StatusUnauthorized, rec.Code)

	wrongScope, err := f.tokens.Generate("ops-alice", []string{ScopeRoomsRead}, time.Hour)
	req.NoError(err)
	rec = f.request(t, http.MethodPost, "/admin/rooms/CHAT-042/end", "",
		map[string]string{"Authorization": "Bearer " + wrongScope})
	req.Equal(http.StatusForbidden, rec.Code)

	token, err := f.tokens.Generate("ops-alice", []string{ScopeRoomsEnd}, time.Hour)
	req.NoError(err)
	rec = f.request(t, http.MethodPost, "/admin/rooms/CHAT-042/end", "",
		map[string]string{"Authorization": "Bearer " + token})
	req.Equal(http.StatusOK, rec.Code)

	// Ended rooms reject joins.
	rec = f.request(t, http.MethodPost, "/api/rooms/join", `{"code":"CHAT-042","userId":"u2"}`, nil)
	req.Equal(http.StatusGone, rec.Code)
}

func TestAdminEnd_UnknownRoomIsNotFound(t *testing.T) {
	req := require.New(t)
	f := setup(t)

	token, err := f.tokens.Generate("ops-alice", []string{ScopeRoomsEnd}, time.Hour)
	req.NoError(err)
	rec := f.request(t, http.MethodPost, "/admin/rooms/CHAT-404/end", "",
		map[string]string{"Authorization": "Bearer " + token})
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)
	rec := f.request(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
