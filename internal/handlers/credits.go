package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/requestdata"
	"github.com/agenticcms/agenticcms-backend/internal/services"
	"github.com/agenticcms/agenticcms-backend/internal/sse"
	"github.com/agenticcms/agenticcms-backend/internal/ssedata"
)

type CreditsHandler struct {
	log    *logger.Logger
	ledger services.CreditLedgerService
}

func NewCreditsHandler(baseLog *logger.Logger, ledger services.CreditLedgerService) *CreditsHandler {
	return &CreditsHandler{
		log:    baseLog.With("handler", "CreditsHandler"),
		ledger: ledger,
	}
}

type purchaseRequest struct {
	Amount int `json:"amount" binding:"required,gt=0"`
}

// Purchase is the mock top-up endpoint: no payment provider, just a ledger
// credit with a purchase description.
func (h *CreditsHandler) Purchase(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	balance, err := h.ledger.Credit(c.Request.Context(), rd.UserID, req.Amount, "Credit purchase")
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if data := ssedata.GetSSEData(c.Request.Context()); data != nil {
		data.AppendMessage(sse.SSEMessage{
			Channel: services.ChannelForUser(rd.UserID),
			Event:   sse.SSEEventCreditBalanceChanged,
			Data:    gin.H{"user_id": rd.UserID, "balance": balance},
		})
	}
	RespondOK(c, gin.H{"balance": balance})
}

func (h *CreditsHandler) Balance(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	balance, err := h.ledger.Balance(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"balance": balance})
}

func (h *CreditsHandler) Transactions(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	transactions, err := h.ledger.Transactions(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"transactions": transactions})
}
