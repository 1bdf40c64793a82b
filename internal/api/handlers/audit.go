package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"heartlink.io/trustengine/internal/audit"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
)

// ListAuditEvents handles GET /api/v1/audit/events. Moderator only.
// Supported filters: actor_id, action, ip_address, from, to (RFC 3339),
// limit, offset.
func (s *Server) ListAuditEvents(c *gin.Context) {
	filter := audit.Filter{
		ActorID:   c.Query("actor_id"),
		Action:    c.Query("action"),
		IPAddress: c.Query("ip_address"),
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	var err error
	if filter.From, err = parseTimeParam(c.Query("from")); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "from must be RFC 3339"))
		return
	}
	if filter.To, err = parseTimeParam(c.Query("to")); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "to must be RFC 3339"))
		return
	}

	events, err := s.ledger.Query(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// DetectAnomalies handles GET /api/v1/audit/anomalies/:user_id. Moderator
// only.
func (s *Server) DetectAnomalies(c *gin.Context) {
	userID := c.Param("user_id")
	anomalies, err := s.ledger.DetectAnomalies(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":   userID,
		"anomalies": anomalies,
		"flagged":   len(anomalies) > 0,
	})
}

// ComplianceReport handles GET /api/v1/audit/compliance-report?from&to.
// Moderator only.
func (s *Server) ComplianceReport(c *gin.Context) {
	from, err := parseTimeParam(c.Query("from"))
	if err != nil || from.IsZero() {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "from is required and must be RFC 3339"))
		return
	}
	to, err := parseTimeParam(c.Query("to"))
	if err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "to must be RFC 3339"))
		return
	}
	if to.IsZero() {
		to = time.Now()
	}

	report, err := s.ledger.GenerateComplianceReport(c.Request.Context(), from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
