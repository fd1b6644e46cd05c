package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/requestdata"
	"github.com/agenticcms/agenticcms-backend/internal/services"
	"github.com/agenticcms/agenticcms-backend/internal/sse"
)

// SSEHandler owns the live-subscription surface: one long-lived stream per
// client plus subscribe/unsubscribe for adding channels to an open stream.
type SSEHandler struct {
	log         *logger.Logger
	hub         *sse.SSEHub
	planService services.LessonPlanService

	mu      sync.Mutex
	clients map[uuid.UUID]*sse.SSEClient
}

func NewSSEHandler(baseLog *logger.Logger, hub *sse.SSEHub, planService services.LessonPlanService) *SSEHandler {
	return &SSEHandler{
		log:         baseLog.With("handler", "SSEHandler"),
		hub:         hub,
		planService: planService,
		clients:     make(map[uuid.UUID]*sse.SSEClient),
	}
}

func (h *SSEHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	client := h.hub.NewSSEClient(rd.UserID)
	h.hub.AddChannel(client, services.ChannelForUser(rd.UserID))

	if raw := strings.TrimSpace(c.Query("channels")); raw != "" {
		for _, channel := range strings.Split(raw, ",") {
			channel = strings.TrimSpace(channel)
			if channel == "" {
				continue
			}
			if err := h.authorizeChannel(c, rd.UserID, channel); err != nil {
				h.hub.CloseClient(client)
				RespondError(c, http.StatusForbidden, "channel_forbidden", err)
				return
			}
			h.hub.AddChannel(client, channel)
		}
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.ID)
		h.mu.Unlock()
		h.hub.CloseClient(client)
	}()

	// First frame tells the caller its client id for later subscribe calls.
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)
	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

type subscribeRequest struct {
	ClientID uuid.UUID `json:"client_id" binding:"required"`
	Channel  string    `json:"channel" binding:"required"`
}

func (h *SSEHandler) Subscribe(c *gin.Context) {
	client, channel, ok := h.resolveSubscription(c)
	if !ok {
		return
	}
	h.hub.AddChannel(client, channel)
	RespondOK(c, gin.H{"status": "subscribed", "channel": channel})
}

func (h *SSEHandler) Unsubscribe(c *gin.Context) {
	client, channel, ok := h.resolveSubscription(c)
	if !ok {
		return
	}
	h.hub.RemoveChannel(client, channel)
	RespondOK(c, gin.H{"status": "unsubscribed", "channel": channel})
}

func (h *SSEHandler) resolveSubscription(c *gin.Context) (*sse.SSEClient, string, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return nil, "", false
	}
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return nil, "", false
	}

	h.mu.Lock()
	client, exists := h.clients[req.ClientID]
	h.mu.Unlock()
	if !exists || client.UserID != rd.UserID {
		RespondError(c, http.StatusNotFound, "client_not_found", fmt.Errorf("no open stream for client %s", req.ClientID))
		return nil, "", false
	}
	if err := h.authorizeChannel(c, rd.UserID, req.Channel); err != nil {
		RespondError(c, http.StatusForbidden, "channel_forbidden", err)
		return nil, "", false
	}
	return client, req.Channel, true
}

// authorizeChannel restricts subscriptions to the caller's own user channel
// and lesson plans the caller owns.
func (h *SSEHandler) authorizeChannel(c *gin.Context, userID uuid.UUID, channel string) error {
	switch {
	case channel == services.ChannelForUser(userID):
		return nil
	case strings.HasPrefix(channel, "lesson_plan:"):
		planID, err := uuid.Parse(strings.TrimPrefix(channel, "lesson_plan:"))
		if err != nil {
			return fmt.Errorf("bad channel %q", channel)
		}
		if _, err := h.planService.Get(c.Request.Context(), planID); err != nil {
			return fmt.Errorf("channel %q not accessible", channel)
		}
		return nil
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
}
