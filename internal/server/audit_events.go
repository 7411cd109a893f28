package server

import (
	"net/http"
	"strings"
	"time"

	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bidworks/clearhouse/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type listAuditEventsQuery struct {
	PageToken   string `form:"page_token"`
	PageSize    int    `form:"page_size"`
	SubjectType string `form:"subject_type"`
	SubjectID   string `form:"subject_id"`
	EventType   string `form:"event_type"`
	StartAt     string `form:"start_at"`
	EndAt       string `form:"end_at"`
}

func (s *Server) ListAuditEvents(c *gin.Context) {
	var query listAuditEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var subject payee.Ref
	subjectType := strings.TrimSpace(query.SubjectType)
	subjectID := strings.TrimSpace(query.SubjectID)
	if subjectType != "" || subjectID != "" {
		parsed, err := payee.ParseRef(subjectType, subjectID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		subject = parsed
	}

	var startAt *time.Time
	if raw := strings.TrimSpace(query.StartAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
			return
		}
		startAt = &parsed
	}

	var endAt *time.Time
	if raw := strings.TrimSpace(query.EndAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
			return
		}
		endAt = &parsed
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListEventsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Subject:   subject,
		EventType: strings.TrimSpace(query.EventType),
		StartAt:   startAt,
		EndAt:     endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Events, "page_info": resp.PageInfo})
}
