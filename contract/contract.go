//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-bridge/domain"
	"context"
	"reflect"
)

// IRoomRepository is the rooms collection boundary. The store offers
// per-document atomic reads and writes but no multi-document transactions
// and no compare-and-swap; every method maps to a single-document
// operation.
type IRoomRepository interface {
	GetRoom(code string) (*domain.Room, error)
	CreateRoom(room *domain.Room) error
	SaveRoom(room *domain.Room) error
	UpdateStatus(code string, status domain.Status) error
	SetBroadcastDispatched(code string, dispatched bool) error
	ListRooms() ([]domain.Room, error)
}

// IMessageRepository is the append-only messages collection boundary.
type IMessageRepository interface {
	Append(message domain.Message) error
	ListByRoom(code string) ([]domain.Message, error)
	CountByRole(code string, role domain.MessageRole) (int, error)
	HasCanonical(code, content string) (bool, error)
}

// Turn is one role-tagged entry of a generation request history.
type Turn struct {
	Role    string
	Content string
}

// IResponder turns a visible message history into a single reply.
// Implementations are expected to be network clients; the core treats
// them as opaque.
type IResponder interface {
	Reply(ctx context.Context, turns []Turn) (string, error)
}

// SearchHit is one scored match from the message index.
type SearchHit struct {
	MessageID string
	RoomCode  string
	Content   string
	Score     float64
}

// ISearchIndex maintains a full-text index over stored messages for the
// operator surface. Indexing failures never block the write path.
type ISearchIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// DispatchResult reports the outcome of a broadcast dispatch attempt.
type DispatchResult struct {
	Dispatched bool   `json:"dispatched"`
	Reason     string `json:"reason,omitempty"`
}

// IRoomGateway is the surface a polling client consumes. Server-side it is
// backed by the services directly, remotely by an HTTP client.
type IRoomGateway interface {
	Status(ctx context.Context, code string) domain.StatusReport
	VisibleMessages(ctx context.Context, code, userID string) ([]domain.Message, error)
	Dispatch(ctx context.Context, code string) DispatchResult
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
