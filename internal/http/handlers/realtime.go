package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/http/response"
	"github.com/citrusqa/bitacora-backend/internal/platform/ctxutil"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime"
	"github.com/citrusqa/bitacora-backend/internal/services"
)

// RealtimeHandler owns the SSE stream plus the POST actions that stand in for
// a bidirectional socket: join/leave a bug room, typing, ephemeral comment
// relay. Connections are keyed per user; a user may hold several tabs.
type RealtimeHandler struct {
	log  *logger.Logger
	hub  *realtime.SSEHub
	emit services.SSEEmitter

	mu      sync.RWMutex
	clients map[uuid.UUID][]*realtime.SSEClient // key: UserID
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, emit services.SSEEmitter) *RealtimeHandler {
	return &RealtimeHandler{
		log:     log.With("handler", "RealtimeHandler"),
		hub:     hub,
		emit:    emit,
		clients: make(map[uuid.UUID][]*realtime.SSEClient),
	}
}

func (h *RealtimeHandler) Stream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	client := h.hub.NewSSEClient(rd.UserID, rd.Name)
	client.Logger = h.log.With("SSEClientID", client.ID)

	h.mu.Lock()
	h.clients[rd.UserID] = append(h.clients[rd.UserID], client)
	h.mu.Unlock()

	h.log.Info("SSE stream open", "user_id", rd.UserID, "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	conns := h.clients[rd.UserID]
	for i, cl := range conns {
		if cl == client {
			h.clients[rd.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.clients[rd.UserID]) == 0 {
		delete(h.clients, rd.UserID)
	}
	h.mu.Unlock()
	h.hub.CloseClient(client)
}

// latestClient returns the user's most recent connection. Room membership
// follows the connection that issued the action.
func (h *RealtimeHandler) latestClient(userID uuid.UUID) *realtime.SSEClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.clients[userID]
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

func (h *RealtimeHandler) JoinBug(c *gin.Context) {
	rd, bugID, ok := h.roomParams(c)
	if !ok {
		return
	}
	client := h.latestClient(rd.UserID)
	if client == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no active realtime connection"})
		return
	}
	roster := h.hub.JoinRoom(client, bugID)
	response.RespondOK(c, gin.H{"viewers": roster})
}

func (h *RealtimeHandler) LeaveBug(c *gin.Context) {
	rd, bugID, ok := h.roomParams(c)
	if !ok {
		return
	}
	client := h.latestClient(rd.UserID)
	if client == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no active realtime connection"})
		return
	}
	roster := h.hub.LeaveRoom(client, bugID)
	response.RespondOK(c, gin.H{"viewers": roster})
}

func (h *RealtimeHandler) Typing(c *gin.Context) {
	rd, bugID, ok := h.roomParams(c)
	if !ok {
		return
	}
	h.emit.Emit(c.Request.Context(), realtime.SSEMessage{
		Channel: realtime.BugChannel(bugID),
		Event:   realtime.SSEEventBugUserTyping,
		Data: gin.H{
			"bugId":  bugID,
			"userId": rd.UserID,
			"name":   rd.Name,
		},
	})
	response.RespondOK(c, gin.H{"ok": true})
}

// Comment relays an ephemeral room message without persisting it. Durable
// comments go through the bug report endpoint.
func (h *RealtimeHandler) Comment(c *gin.Context) {
	rd, bugID, ok := h.roomParams(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.emit.Emit(c.Request.Context(), realtime.SSEMessage{
		Channel: realtime.BugChannel(bugID),
		Event:   realtime.SSEEventBugCommented,
		Data: gin.H{
			"bugId":  bugID,
			"userId": rd.UserID,
			"name":   rd.Name,
			"text":   req.Text,
		},
	})
	response.RespondOK(c, gin.H{"ok": true})
}

func (h *RealtimeHandler) roomParams(c *gin.Context) (*ctxutil.RequestData, uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, uuid.Nil, false
	}
	bugID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return nil, uuid.Nil, false
	}
	return rd, bugID, true
}
