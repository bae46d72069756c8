package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"audiofp/internal/observability"
	"audiofp/internal/service/fingerprint"
	"audiofp/internal/worker"
)

const (
	msgServerError = "Server error"
	msgTooLarge    = "File size limit has been reached"
	msgBusy        = "Server is busy, please retry"
)

// writeError maps pipeline errors to status codes and response bodies.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		inputErr *fingerprint.ClientInputError
		invErr   *fingerprint.InvocationError
	)
	switch {
	case errors.As(err, &inputErr):
		h.metrics.ObserveOutcome(observability.OutcomeRejected)
		c.JSON(http.StatusBadRequest, gin.H{"error": inputErr.Message})
	case errors.Is(err, errFileTooLarge) || isTooLarge(err):
		h.metrics.ObserveOutcome(observability.OutcomeRejected)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgTooLarge})
	case errors.As(err, &invErr):
		c.JSON(http.StatusInternalServerError, invErr.Report)
	case errors.Is(err, fingerprint.ErrOutputParse):
		c.JSON(http.StatusInternalServerError, gin.H{"error": fingerprint.MsgParseFailed})
	case errors.Is(err, worker.ErrDispatcherBusy), errors.Is(err, worker.ErrDispatcherStopped):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msgBusy})
	default:
		h.logger.Error("fingerprint request failed", "error", err, "request_id", requestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgServerError})
	}
}

// isTooLarge detects a body cut off by http.MaxBytesReader, including when
// the multipart reader reports it without wrapping.
func isTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
