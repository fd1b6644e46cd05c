package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/services"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
}

func NewUserHandler(baseLog *logger.Logger, userService services.UserService) *UserHandler {
	return &UserHandler{
		log:         baseLog.With("handler", "UserHandler"),
		userService: userService,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetMe(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}
