package handler

import (
	"net/http"

	apperrors "pulsechat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// SendMessage is the REST fallback for message delivery when the websocket
// channel is unavailable. It runs the exact same pipeline as the realtime
// path: validation, persistence, delivered-status upgrade and presence-aware
// push to a recipient connected over the socket.
func (h *Handler) SendMessage(c *gin.Context) {
	tokenString, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}
	senderID, err := h.validateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	msg, err := h.Pipeline.Send(senderID, c.Param("id"), req.Content)
	if err != nil {
		c.JSON(httpStatusFor(err), gin.H{
			"error": err.Error(),
			"code":  apperrors.CodeOf(err),
		})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func httpStatusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeNotAuthorized:
		return http.StatusForbidden
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
