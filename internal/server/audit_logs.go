package server

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
)

type listAuditQuery struct {
	Limit int `form:"limit"`
}

// ListAutomationAudit merges the webhook deliveries recorded against the
// payment with the saga events recorded against its automation, newest first.
func (s *Server) ListAutomationAudit(c *gin.Context) {
	var query listAuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	record, err := s.automationSvc.GetAutomationStatus(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	deliveries, err := s.auditSvc.List(ctx, auditdomain.ListAuditLogRequest{
		TargetType: auditdomain.TargetTypePayment,
		TargetID:   record.PaymentID,
		Limit:      query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	events, err := s.auditSvc.List(ctx, auditdomain.ListAuditLogRequest{
		TargetType: auditdomain.TargetTypeAutomation,
		TargetID:   record.ID.String(),
		Limit:      query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logs := append(deliveries, events...)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if query.Limit > 0 && len(logs) > query.Limit {
		logs = logs[:query.Limit]
	}

	c.JSON(http.StatusOK, gin.H{"data": logs, "automation_id": record.ID.String()})
}
