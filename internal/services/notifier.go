package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	redisbus "github.com/agenticcms/agenticcms-backend/internal/clients/redis"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/sse"
	"github.com/agenticcms/agenticcms-backend/internal/types"
)

func ChannelForUser(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}

func ChannelForLessonPlan(planID uuid.UUID) string {
	return fmt.Sprintf("lesson_plan:%s", planID)
}

// Notifier pushes live run progress to SSE subscribers. With a redis bus
// attached every message routes through pub/sub so all instances see it;
// without one it goes straight to the local hub.
type Notifier interface {
	RunStatusChanged(plan *types.LessonPlan)
	LessonPlanUpdated(plan *types.LessonPlan)
	ArtifactCreated(artifact *types.Artifact)
	CreditBalanceChanged(userID uuid.UUID, balance int)
}

type sseNotifier struct {
	log *logger.Logger
	hub *sse.SSEHub
	bus redisbus.SSEBus
}

func NewSSENotifier(baseLog *logger.Logger, hub *sse.SSEHub, bus redisbus.SSEBus) Notifier {
	return &sseNotifier{
		log: baseLog.With("service", "SSENotifier"),
		hub: hub,
		bus: bus,
	}
}

func (n *sseNotifier) publish(msg sse.SSEMessage) {
	if n.bus != nil {
		if err := n.bus.Publish(context.Background(), msg); err != nil {
			n.log.Warn("redis publish failed; falling back to local hub", "error", err)
			n.hub.Broadcast(msg)
		}
		return
	}
	n.hub.Broadcast(msg)
}

func (n *sseNotifier) RunStatusChanged(plan *types.LessonPlan) {
	msg := sse.SSEMessage{
		Channel: ChannelForLessonPlan(plan.ID),
		Event:   sse.SSEEventAgentRunStatus,
		Data:    plan,
	}
	n.publish(msg)
	msg.Channel = ChannelForUser(plan.UserID)
	n.publish(msg)
}

func (n *sseNotifier) LessonPlanUpdated(plan *types.LessonPlan) {
	n.publish(sse.SSEMessage{
		Channel: ChannelForLessonPlan(plan.ID),
		Event:   sse.SSEEventLessonPlanUpdated,
		Data:    plan,
	})
}

func (n *sseNotifier) ArtifactCreated(artifact *types.Artifact) {
	n.publish(sse.SSEMessage{
		Channel: ChannelForLessonPlan(artifact.ParentID),
		Event:   sse.SSEEventArtifactCreated,
		Data:    artifact,
	})
}

func (n *sseNotifier) CreditBalanceChanged(userID uuid.UUID, balance int) {
	n.publish(sse.SSEMessage{
		Channel: ChannelForUser(userID),
		Event:   sse.SSEEventCreditBalanceChanged,
		Data:    map[string]any{"user_id": userID, "balance": balance},
	})
}
