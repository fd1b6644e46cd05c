package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/services"
	"github.com/agenticcms/agenticcms-backend/internal/sse"
	"github.com/agenticcms/agenticcms-backend/internal/ssedata"
)

type LessonPlanHandler struct {
	log             *logger.Logger
	planService     services.LessonPlanService
	agentRunService services.AgentRunService
}

func NewLessonPlanHandler(
	baseLog *logger.Logger,
	planService services.LessonPlanService,
	agentRunService services.AgentRunService,
) *LessonPlanHandler {
	return &LessonPlanHandler{
		log:             baseLog.With("handler", "LessonPlanHandler"),
		planService:     planService,
		agentRunService: agentRunService,
	}
}

func (h *LessonPlanHandler) Create(c *gin.Context) {
	var input services.CreateLessonPlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	plan, err := h.planService.Create(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lesson_plan": plan})
}

func (h *LessonPlanHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	plan, err := h.planService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"lesson_plan": plan})
}

func (h *LessonPlanHandler) List(c *gin.Context) {
	plans, err := h.planService.List(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"lesson_plans": plans})
}

func (h *LessonPlanHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var input services.UpdateLessonPlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	plan, err := h.planService.Update(c.Request.Context(), id, input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if data := ssedata.GetSSEData(c.Request.Context()); data != nil {
		data.AppendMessage(sse.SSEMessage{
			Channel: services.ChannelForLessonPlan(plan.ID),
			Event:   sse.SSEEventLessonPlanUpdated,
			Data:    plan,
		})
	}
	RespondOK(c, gin.H{"lesson_plan": plan})
}

func (h *LessonPlanHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.planService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

// Start runs the agent workflow synchronously; progress streams over SSE
// while the caller waits for the terminal state.
func (h *LessonPlanHandler) Start(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	plan, err := h.agentRunService.StartRun(c.Request.Context(), id)
	if err != nil {
		h.log.Warn("agent run request failed", "plan_id", id, "error", err)
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"lesson_plan": plan})
}

func (h *LessonPlanHandler) ListArtifacts(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	artifacts, err := h.planService.ListArtifacts(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"artifacts": artifacts})
}

func (h *LessonPlanHandler) Actions(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	actions, err := h.planService.Actions(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"actions": actions})
}
