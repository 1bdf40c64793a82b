package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"heartlink.io/trustengine/internal/moderation"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
)

type classifyTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// ClassifyText handles POST /api/v1/moderation/text.
func (s *Server) ClassifyText(c *gin.Context) {
	var req classifyTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "text is required"))
		return
	}
	c.JSON(http.StatusOK, s.engine.ClassifyText(req.Text))
}

type classifyImageRequest struct {
	ContentID   string `json:"content_id"`
	OwnerID     string `json:"owner_id"`
	ImageBase64 string `json:"image_base64" binding:"required"`
}

// ClassifyImage handles POST /api/v1/moderation/image. Rejected images
// with a content id are parked in the review queue for a human decision.
func (s *Server) ClassifyImage(c *gin.Context) {
	var req classifyImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "image_base64 is required"))
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "image_base64 is not valid base64"))
		return
	}

	decision := s.engine.ClassifyImage(c.Request.Context(), image)
	if !decision.Approved && req.ContentID != "" {
		s.reviews.Enqueue(moderation.Decision{
			ContentID:   req.ContentID,
			ContentType: moderation.ContentImage,
			OwnerID:     req.OwnerID,
			Score:       decision.Scores.NSFW,
			Reason:      decision.Reason,
		})
	}
	c.JSON(http.StatusOK, decision)
}

type classifyMessageRequest struct {
	SenderID string `json:"sender_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

// ClassifyMessage handles POST /api/v1/moderation/message.
func (s *Server) ClassifyMessage(c *gin.Context) {
	var req classifyMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "sender_id and text are required"))
		return
	}

	decision, err := s.engine.ClassifyMessage(c.Request.Context(), req.SenderID, req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// ReviewQueue handles GET /api/v1/moderation/queue. Moderator only.
func (s *Server) ReviewQueue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items := s.reviews.Pending(limit)
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// ReviewContent handles POST /api/v1/moderation/queue/:content_id/review.
// Moderator only.
func (s *Server) ReviewContent(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "invalid review payload"))
		return
	}

	decision, err := s.reviews.Review(c.Request.Context(), c.Param("content_id"), req.Approve, actorFromCtx(c), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
