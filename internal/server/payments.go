package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	automationdomain "github.com/smallbiznis/streamgate/internal/automation/domain"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
)

type paymentStatusResponse struct {
	PaymentID    string                  `json:"payment_id"`
	AutomationID string                  `json:"automation_id"`
	Status       automationdomain.Status `json:"status"`
}

// GetPaymentStatus is polled by the checkout page. It never exposes credentials.
func (s *Server) GetPaymentStatus(c *gin.Context) {
	record, err := s.automationSvc.GetAutomationStatus(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentStatusResponse{
		PaymentID:    record.PaymentID,
		AutomationID: record.ID.String(),
		Status:       record.Status,
	})
}

type createDraftRequest struct {
	PaymentID string `json:"payment_id"`
	Plan      string `json:"plan"`
	Email     string `json:"email"`
	AutoRenew bool   `json:"auto_renew"`
}

// CreateCheckoutDraft records plan and email before the customer is sent to
// the gateway, for gateways whose notifications omit them.
func (s *Server) CreateCheckoutDraft(c *gin.Context) {
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		AbortWithError(c, newValidationError("payment_id", "required", "payment_id is required"))
		return
	}
	if strings.TrimSpace(req.Plan) == "" {
		AbortWithError(c, newValidationError("plan", "required", "plan is required"))
		return
	}

	draft, err := s.identitySvc.CreateDraft(c.Request.Context(), identitydomain.CreateDraftRequest{
		PaymentID: req.PaymentID,
		Plan:      req.Plan,
		Email:     req.Email,
		AutoRenew: req.AutoRenew,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         draft.ID.String(),
		"payment_id": draft.PaymentID,
		"plan":       draft.Plan,
		"status":     draft.Status,
	})
}
