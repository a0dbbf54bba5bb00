package services

import (
	"chat-bridge/contract"
	"chat-bridge/domain"
	"context"
)

// Gateway adapts the services to the contract.IRoomGateway surface the
// polling client consumes. In-process watchers use it directly; remote
// watchers go through the HTTP client, which implements the same
// interface.
type Gateway struct {
	rooms    *RoomService
	chat     *ChatService
	dispatch *DispatchService
}

func NewGateway(rooms *RoomService, chat *ChatService, dispatch *DispatchService) *Gateway {
	return &Gateway{rooms: rooms, chat: chat, dispatch: dispatch}
}

func (g *Gateway) Status(_ context.Context, code string) domain.StatusReport {
	return g.rooms.GetStatus(code)
}

func (g *Gateway) VisibleMessages(_ context.Context, code, userID string) ([]domain.Message, error) {
	return g.chat.VisibleMessages(code, userID), nil
}

func (g *Gateway) Dispatch(ctx context.Context, code string) contract.DispatchResult {
	return g.dispatch.DispatchOnce(ctx, code)
}
