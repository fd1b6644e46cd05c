package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/services"
)

type ClassroomHandler struct {
	log              *logger.Logger
	classroomService services.ClassroomService
	profileService   services.StudentProfileService
}

func NewClassroomHandler(
	baseLog *logger.Logger,
	classroomService services.ClassroomService,
	profileService services.StudentProfileService,
) *ClassroomHandler {
	return &ClassroomHandler{
		log:              baseLog.With("handler", "ClassroomHandler"),
		classroomService: classroomService,
		profileService:   profileService,
	}
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ClassroomHandler) Create(c *gin.Context) {
	var input services.CreateClassroomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	classroom, err := h.classroomService.Create(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"classroom": classroom})
}

func (h *ClassroomHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	classroom, err := h.classroomService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"classroom": classroom})
}

func (h *ClassroomHandler) List(c *gin.Context) {
	classrooms, err := h.classroomService.List(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"classrooms": classrooms})
}

func (h *ClassroomHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var input services.UpdateClassroomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	classroom, err := h.classroomService.Update(c.Request.Context(), id, input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"classroom": classroom})
}

func (h *ClassroomHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.classroomService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}

func (h *ClassroomHandler) ListStudents(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	students, err := h.profileService.ListByClassroom(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"students": students})
}
