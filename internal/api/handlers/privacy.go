package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"heartlink.io/trustengine/internal/lifecycle"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
)

// RequestExport handles POST /api/v1/privacy/export.
// The export is processed in the background; the response is the pending
// request for the client to poll.
func (s *Server) RequestExport(c *gin.Context) {
	req, err := s.lifecycle.RequestExport(c.Request.Context(), actorFromCtx(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, req)
}

// ExportStatus handles GET /api/v1/privacy/export.
func (s *Server) ExportStatus(c *gin.Context) {
	req, err := s.lifecycle.ExportStatus(c.Request.Context(), actorFromCtx(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type deletionRequestBody struct {
	Reason string `json:"reason"`
}

// RequestDeletion handles POST /api/v1/privacy/deletion.
func (s *Server) RequestDeletion(c *gin.Context) {
	var body deletionRequestBody
	// Body is optional; a missing reason is fine.
	_ = c.ShouldBindJSON(&body)

	req, err := s.lifecycle.RequestDeletion(c.Request.Context(), actorFromCtx(c), body.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, req)
}

// DeletionStatus handles GET /api/v1/privacy/deletion.
func (s *Server) DeletionStatus(c *gin.Context) {
	req, err := s.lifecycle.DeletionStatus(c.Request.Context(), actorFromCtx(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// CancelDeletion handles DELETE /api/v1/privacy/deletion.
func (s *Server) CancelDeletion(c *gin.Context) {
	if err := s.lifecycle.CancelDeletion(c.Request.Context(), actorFromCtx(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateConsent handles PUT /api/v1/privacy/consent.
func (s *Server) UpdateConsent(c *gin.Context) {
	var update lifecycle.ConsentUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "invalid consent payload"))
		return
	}

	consent, err := s.lifecycle.UpdateConsent(c.Request.Context(), actorFromCtx(c), update)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, consent)
}

// ConsentStatus handles GET /api/v1/privacy/consent.
func (s *Server) ConsentStatus(c *gin.Context) {
	consent, err := s.lifecycle.ConsentStatus(c.Request.Context(), actorFromCtx(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, consent)
}
