package http

import (
	"chat-bridge/domain"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newGatewayFixture(t *testing.T) (*GatewayClient, *fixture) {
	t.Helper()
	f := setup(t)
	server := httptest.NewServer(f.router)
	t.Cleanup(server.Close)
	return NewGatewayClient(server.URL, time.Second, slog.Default()), f
}

func TestGatewayClient_RoundTrip(t *testing.T) {
	req := require.New(t)
	gateway, f := newGatewayFixture(t)
	ctx := context.Background()

	req.NoError(gateway.Join(ctx, "CHAT-042", "u1", domain.ModelNarrative, domain.RoleChild))
	req.NoError(gateway.Join(ctx, "CHAT-042", "u2", domain.ModelArgumentative, domain.RoleParent))

	report := gateway.Status(ctx, "CHAT-042")
	req.True(report.Exists)
	req.Equal(2, report.Occupancy)

	result := gateway.Dispatch(ctx, "CHAT-042")
	req.True(result.Dispatched)

	f.responder.EXPECT().Reply(gomock.Any(), gomock.Any()).Return("a reply", nil)
	replies, err := gateway.Send(ctx, "CHAT-042", "u1", "hello")
	req.NoError(err)
	req.Len(replies, 1)

	// u1 sees the broadcast, its own submission and its reply.
	visible, err := gateway.VisibleMessages(ctx, "CHAT-042", "u1")
	req.NoError(err)
	req.Len(visible, 3)

	// u2 sees only the broadcast.
	visible, err = gateway.VisibleMessages(ctx, "CHAT-042", "u2")
	req.NoError(err)
	req.Len(visible, 1)
	req.Equal(domain.MessageRoleSystem, visible[0].Role)
}

func TestGatewayClient_AllocateThenJoin(t *testing.T) {
	req := require.New(t)
	gateway, _ := newGatewayFixture(t)
	ctx := context.Background()

	code, userID, err := gateway.Allocate(ctx)
	req.NoError(err)
	req.True(domain.ValidRoomCode(code))
	req.NotEmpty(userID)

	req.NoError(gateway.Join(ctx, code, userID, domain.ModelNarrative, domain.RoleChild))
	report := gateway.Status(ctx, code)
	req.True(report.Exists)
	req.Equal(1, report.Occupancy)
}

func TestGatewayClient_JoinErrorSurfaces(t *testing.T) {
	req := require.New(t)
	gateway, _ := newGatewayFixture(t)

	err := gateway.Join(context.Background(), "BAD-CODE", "u1", domain.ModelNarrative, "")
	req.Error(err)
	req.Contains(err.Error(), "400")
}

func TestGatewayClient_StatusFailsSoft(t *testing.T) {
	gateway := NewGatewayClient("http://127.0.0.1:1", 100*time.Millisecond, slog.Default())
	report := gateway.Status(context.Background(), "CHAT-042")
	require.Equal(t, domain.UnknownStatus(), report)
}
