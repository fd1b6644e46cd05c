package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/services"
)

type StudentProfileHandler struct {
	log            *logger.Logger
	profileService services.StudentProfileService
}

func NewStudentProfileHandler(baseLog *logger.Logger, profileService services.StudentProfileService) *StudentProfileHandler {
	return &StudentProfileHandler{
		log:            baseLog.With("handler", "StudentProfileHandler"),
		profileService: profileService,
	}
}

func (h *StudentProfileHandler) Create(c *gin.Context) {
	var input services.CreateStudentProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	profile, err := h.profileService.Create(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student_profile": profile})
}

func (h *StudentProfileHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	profile, err := h.profileService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"student_profile": profile})
}

func (h *StudentProfileHandler) List(c *gin.Context) {
	profiles, err := h.profileService.List(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"student_profiles": profiles})
}

func (h *StudentProfileHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var input services.UpdateStudentProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	profile, err := h.profileService.Update(c.Request.Context(), id, input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"student_profile": profile})
}

func (h *StudentProfileHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.profileService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "deleted"})
}
