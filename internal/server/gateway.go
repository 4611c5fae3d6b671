package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"keygate/internal/db"
	"keygate/internal/metrics"
	"keygate/internal/service"
)

type summarizePayload struct {
	Text string `json:"text"`
}

type summarizeRequest struct {
	APIKey  string           `json:"apiKey"`
	Payload summarizePayload `json:"payload"`
}

type validateRequest struct {
	APIKey string `json:"apiKey"`
}

// ValidateKeyHandler checks a submitted key without consuming usage.
// POST /v1/validate
func (s *Server) ValidateKeyHandler(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ValidationResults.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "Invalid request body"})
		return
	}

	key, err := s.keys.Validate(c.Request.Context(), req.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			metrics.ValidationResults.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "API key is required"})
		case errors.Is(err, db.ErrKeyNotFound):
			metrics.ValidationResults.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": "Invalid API key"})
		default:
			metrics.ValidationResults.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"valid": false, "error": "Internal server error"})
		}
		return
	}

	metrics.ValidationResults.WithLabelValues("valid").Inc()
	c.JSON(http.StatusOK, gin.H{"valid": true, "data": key})
}

// SummarizeHandler is the gateway for the protected summarize action:
// validate, reject exhausted keys before doing any work, run the action,
// then consume one usage unit.
// POST /v1/summarize
func (s *Server) SummarizeHandler(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.gatewayReject(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Payload.Text) == "" {
		s.gatewayReject(c, http.StatusBadRequest, "payload.text is required")
		return
	}

	key, err := s.keys.Validate(c.Request.Context(), req.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput), errors.Is(err, db.ErrKeyNotFound):
			s.gatewayReject(c, http.StatusUnauthorized, "Invalid API key")
		default:
			s.gatewayReject(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	// Cheap pre-check on the record already in hand; the conditional update
	// in RecordUsage is the authoritative gate.
	if key.UsageCount >= key.UsageLimit {
		metrics.GatewayRequests.WithLabelValues(strconv.Itoa(http.StatusTooManyRequests)).Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Usage limit exceeded",
			"usage": gin.H{"current": key.UsageCount, "limit": key.UsageLimit},
		})
		return
	}

	result, err := s.summarizer.Summarize(c.Request.Context(), req.Payload.Text)
	if err != nil {
		// The action never ran to completion, so no usage is consumed.
		s.logger.Error("summarize action failed", "key_id", key.ID, "error", err)
		s.gatewayReject(c, http.StatusBadGateway, "Summarization failed")
		return
	}

	usage := gin.H{"current": key.UsageCount, "limit": key.UsageLimit}
	snapshot, err := s.keys.RecordUsage(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, db.ErrLimitExceeded) {
			// Lost the race for the last unit after the action already ran.
			// The granted action stands; report the key as exhausted.
			usage = gin.H{"current": key.UsageLimit, "limit": key.UsageLimit}
		}
		// Accounting is fail-open: the action was granted and executed, so
		// a bookkeeping failure must not turn the response into an error.
		s.logger.Error("usage accounting failed after granted action", "key_id", key.ID, "error", err)
	} else {
		usage = gin.H{"current": snapshot.Current, "limit": snapshot.Limit}
		metrics.UsageConsumed.Inc()
	}

	metrics.GatewayRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	c.JSON(http.StatusOK, gin.H{"result": result, "usage": usage})
}

func (s *Server) gatewayReject(c *gin.Context, status int, message string) {
	metrics.GatewayRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	c.JSON(status, gin.H{"error": message})
}
