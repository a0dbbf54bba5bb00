package http

import (
	apperrors "chat-bridge/errors"

	"chat-bridge/contract"
	"chat-bridge/domain"
	"chat-bridge/observability"
	"chat-bridge/services"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler carries the service dependencies behind the HTTP surface.
type Handler struct {
	rooms    services.IRoomService
	chat     services.IChatService
	dispatch *services.DispatchService
	index    contract.ISearchIndex // optional
	log      *slog.Logger
}

func NewHandler(
	rooms services.IRoomService,
	chat services.IChatService,
	dispatch *services.DispatchService,
	index contract.ISearchIndex,
	log *slog.Logger,
) *Handler {
	return &Handler{rooms: rooms, chat: chat, dispatch: dispatch, index: index, log: log}
}

type joinRequest struct {
	Code   string `json:"code" binding:"required,roomcode"`
	UserID string `json:"userId" binding:"required"`
	Model  string `json:"model"`
	Role   string `json:"role"`
}

// Join enters a user into a room, creating it when absent.
func (h *Handler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.Join(c.Request.Context(), services.JoinCommand{
		Code:   req.Code,
		UserID: req.UserID,
		Model:  domain.ConversationModel(req.Model),
		Role:   domain.Role(req.Role),
	})
	if err != nil {
		c.JSON(joinStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":      room.Code,
		"occupancy": room.Occupancy(),
		"capacity":  domain.RoomCapacity,
	})
}

// Allocate hands out a fresh room code and user identity for clients
// that bring neither. Nothing is created until the code is joined.
func (h *Handler) Allocate(c *gin.Context) {
	code, userID := h.rooms.Allocate()
	c.JSON(http.StatusOK, gin.H{"code": code, "userId": userID})
}

func joinStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidRoomCode):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrRoomEnded):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// Status reports the recomputed room status. Always 200; an unknown room
// reports exists=false rather than an error, so pollers need no special
// casing.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.GetStatus(c.Param("code")))
}

// Messages returns the history visible to the requesting user.
func (h *Handler) Messages(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	visible := h.chat.VisibleMessages(c.Param("code"), userID)
	c.JSON(http.StatusOK, gin.H{"messages": visible})
}

type sendRequest struct {
	UserID string `json:"userId" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// Send stores a user submission and returns the reply addressed to that
// user.
func (h *Handler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	replies, err := h.chat.SendUserMessage(c.Request.Context(), c.Param("code"), req.UserID, req.Text)
	if err != nil {
		c.JSON(sendStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

func sendStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrRoomNotReady):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrRoomEnded):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// Dispatch attempts the opening broadcast. Always 200: "not dispatched"
// is a normal outcome carried in the body, not a transport error.
func (h *Handler) Dispatch(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatch.DispatchOnce(c.Request.Context(), c.Param("code")))
}

// AdminEnd marks a room ENDED. Guarded by the operator middleware.
func (h *Handler) AdminEnd(c *gin.Context) {
	code := c.Param("code")
	if err := h.rooms.EndRoom(code); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("room ended by operator", "room", code, "operator", c.GetString(operatorKey))
	c.JSON(http.StatusOK, gin.H{"code": code, "status": domain.StatusEnded})
}

// AdminSearch queries the message index. Guarded by the operator
// middleware.
func (h *Handler) AdminSearch(c *gin.Context) {
	if h.index == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "search index disabled"})
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	hits, err := h.index.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

// DebugStats serves process self-stats.
func (h *Handler) DebugStats(c *gin.Context) {
	stats, err := observability.CollectSelf()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
