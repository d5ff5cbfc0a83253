package onboarding

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/pkg/workflows"
)

// maxPayloadBytes bounds webhook bodies, which may carry base64 images
const maxPayloadBytes = 32 << 20

// Handler handles HTTP requests for the onboarding pipeline
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new onboarding handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterWebhookRoutes registers the automation webhook behind the given middleware
func (h *Handler) RegisterWebhookRoutes(router gin.IRouter, middleware ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, middleware...), h.handleOnboarding)
	router.POST("/webhook/onboarding", handlers...)
}

// RegisterRoutes registers submission routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	submissions := router.Group("/submissions")
	{
		submissions.GET("/:id", h.getSubmission)
		submissions.POST("/:id/retry", h.retrySubmission)
	}
}

// handleOnboarding handles POST /webhook/onboarding
func (h *Handler) handleOnboarding(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	result, err := h.service.Process(c.Request.Context(), body)
	if err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to process onboarding webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process submission"})
		return
	}

	c.JSON(resultStatus(result), result)
}

// getSubmission handles GET /api/v1/submissions/:id
func (h *Handler) getSubmission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission ID"})
		return
	}

	sub, err := h.service.GetSubmission(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		h.logger.Error("Failed to get submission", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get submission"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// retrySubmission handles POST /api/v1/submissions/:id/retry
func (h *Handler) retrySubmission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission ID"})
		return
	}

	result, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
			return
		}
		if errors.Is(err, workflows.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "submission is already being processed"})
			return
		}
		h.logger.Error("Failed to retry submission", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry submission"})
		return
	}

	c.JSON(resultStatus(result), result)
}

func resultStatus(r *PipelineResult) int {
	if r.Success {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
