package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	automationdomain "github.com/smallbiznis/streamgate/internal/automation/domain"
)

const maxAutomationListLimit = 200

type listAutomationsQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
}

func (s *Server) ListAutomations(c *gin.Context) {
	var query listAutomationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if query.Limit < 0 || query.Limit > maxAutomationListLimit {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 1 and 200"))
		return
	}

	records, err := s.automationSvc.ListAutomations(c.Request.Context(), automationdomain.ListRequest{
		Status: strings.TrimSpace(query.Status),
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

// GetAutomation returns the full ledger record for a payment, credentials included.
func (s *Server) GetAutomation(c *gin.Context) {
	record, err := s.automationSvc.GetAutomationStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

// RetryAutomation re-runs a failed or pending automation by its id. Retrying
// a completed automation returns the stored result.
func (s *Server) RetryAutomation(c *gin.Context) {
	result, err := s.automationSvc.RetryAutomation(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if result.Busy {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"data": result})
}
