package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	redisbus "github.com/agenticcms/agenticcms-backend/internal/clients/redis"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/sse"
	"github.com/agenticcms/agenticcms-backend/internal/ssedata"
)

type SSEFlushMiddleware struct {
	log *logger.Logger
	hub *sse.SSEHub
	bus redisbus.SSEBus
}

func NewSSEFlushMiddleware(baseLog *logger.Logger, hub *sse.SSEHub, bus redisbus.SSEBus) *SSEFlushMiddleware {
	return &SSEFlushMiddleware{
		log: baseLog.With("middleware", "SSEFlushMiddleware"),
		hub: hub,
		bus: bus,
	}
}

// Flush publishes messages buffered during request handling once the handler
// has returned with a success status. Failed requests discard their buffer,
// so subscribers never hear about writes that were rejected.
func (m *SSEFlushMiddleware) Flush() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		data := ssedata.GetSSEData(c.Request.Context())
		if data == nil || len(data.Messages) == 0 {
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}
		for _, msg := range data.Messages {
			m.publish(msg)
		}
	}
}

func (m *SSEFlushMiddleware) publish(msg sse.SSEMessage) {
	if m.bus != nil {
		if err := m.bus.Publish(context.Background(), msg); err != nil {
			m.log.Warn("redis publish failed; falling back to local hub", "error", err)
			m.hub.Broadcast(msg)
		}
		return
	}
	m.hub.Broadcast(msg)
}
