package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Harishith4529/shortlink/internal/middleware"
	"github.com/Harishith4529/shortlink/internal/models"
	"github.com/Harishith4529/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service        service.LinkService
	clickProcessor service.ClickProcessor
	metrics        *middleware.Metrics
	baseURL        string
	logger         *zap.Logger
}

func NewLinkHandler(
	linkService service.LinkService,
	clickProcessor service.ClickProcessor,
	metrics *middleware.Metrics,
	baseURL string,
	logger *zap.Logger,
) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		service:        linkService,
		clickProcessor: clickProcessor,
		metrics:        metrics,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		logger:         logger,
	}
}

type CreateLinkRequest struct {
	URL        string     `json:"url" binding:"required,url"`
	CustomCode string     `json:"custom_code,omitempty"`
	Title      *string    `json:"title,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type LinkResponse struct {
	Code        string     `json:"code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	Title       *string    `json:"title,omitempty"`
	IsActive    bool       `json:"is_active"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *LinkHandler) linkResponse(link *models.Link) LinkResponse {
	return LinkResponse{
		Code:        link.Code,
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, link.Code),
		OriginalURL: link.OriginalURL,
		Title:       link.Title,
		IsActive:    link.IsActive,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}
}

// CreateLink godoc
// @Summary Create a short link
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	ownerID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "Missing user identity"})
		return
	}

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.CreateLinkInput{
		OriginalURL: req.URL,
		Title:       req.Title,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.CustomCode != "" {
		input.CustomCode = &req.CustomCode
	}

	link, err := h.service.CreateLink(c.Request.Context(), ownerID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: "Destination must be an absolute http(s) URL",
			})
		case errors.Is(err, service.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_code",
				Message: "Custom code must be 4-32 characters: letters, digits, '-' or '_'",
			})
		case errors.Is(err, service.ErrCodeTaken):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "code_taken",
				Message: "Custom code is already in use",
			})
		case errors.Is(err, service.ErrGenerationExhausted):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "generation_exhausted",
				Message: "Could not allocate a unique code, please retry",
			})
		default:
			h.logger.Error("Failed to create link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create link",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, h.linkResponse(link))
}

// Redirect godoc
// @Summary Redirect to original URL
// @Tags links
// @Param code path string true "Short code"
// @Success 307 {object} nil
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_code",
			Message: "Short code is required",
		})
		return
	}

	destination, err := h.service.ResolveLink(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			h.metrics.ObserveRedirect("not_found")
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found",
			})
		case errors.Is(err, service.ErrInactive):
			h.metrics.ObserveRedirect("inactive")
			c.JSON(http.StatusGone, ErrorResponse{
				Error:   "link_inactive",
				Message: "Link has been deactivated",
			})
		case errors.Is(err, service.ErrExpired):
			h.metrics.ObserveRedirect("expired")
			c.JSON(http.StatusGone, ErrorResponse{
				Error:   "link_expired",
				Message: "Link has expired",
			})
		default:
			h.logger.Error("Failed to resolve link", zap.String("code", code), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to resolve link",
			})
		}
		return
	}

	h.metrics.ObserveRedirect("success")

	// Audit trail is asynchronous; a full buffer drops the event rather
	// than delaying the redirect.
	clickEvent := &models.ClickEvent{
		Code:      code,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}
	if err := h.clickProcessor.RecordClick(c.Request.Context(), clickEvent); err != nil {
		h.logger.Debug("Failed to enqueue click event", zap.Error(err))
	}

	c.Redirect(http.StatusTemporaryRedirect, destination)
}

// ListLinks godoc
// @Summary List the caller's links, newest first
// @Tags links
// @Produce json
// @Success 200 {array} LinkResponse
// @Router /api/v1/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	ownerID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "Missing user identity"})
		return
	}

	links, err := h.service.ListLinks(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to list links", zap.String("owner", ownerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list links",
		})
		return
	}

	responses := make([]LinkResponse, 0, len(links))
	for i := range links {
		responses = append(responses, h.linkResponse(&links[i]))
	}

	c.JSON(http.StatusOK, responses)
}

type EditLinkRequest struct {
	URL      *string `json:"url,omitempty"`
	Title    *string `json:"title,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// EditLink godoc
// @Summary Edit a short link
// @Tags links
// @Accept json
// @Produce json
// @Param code path string true "Short code"
// @Param request body EditLinkRequest true "Fields to change"
// @Success 200 {object} LinkResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [patch]
func (h *LinkHandler) EditLink(c *gin.Context) {
	ownerID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "Missing user identity"})
		return
	}
	code := c.Param("code")

	var req EditLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	patch := &models.LinkPatch{
		OriginalURL: req.URL,
		Title:       req.Title,
		IsActive:    req.IsActive,
	}

	link, err := h.service.EditLink(c.Request.Context(), code, ownerID, patch)
	if err != nil {
		h.respondLifecycleError(c, code, err, "Failed to edit link")
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// DeleteLink godoc
// @Summary Delete a short link (soft on first call, permanent on second)
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	ownerID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated", Message: "Missing user identity"})
		return
	}
	code := c.Param("code")

	state, err := h.service.DeleteLink(c.Request.Context(), code, ownerID)
	if err != nil {
		h.respondLifecycleError(c, code, err, "Failed to delete link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": string(state)})
}

// GetStats godoc
// @Summary Get click statistics for a short link
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} models.ClickStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.clickProcessor.GetStats(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("Failed to get stats", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetDailyStats godoc
// @Summary Get daily click statistics
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Param days query int false "Number of days" default(7)
// @Success 200 {array} models.DailyClickStats
// @Router /api/v1/links/{code}/stats/daily [get]
func (h *LinkHandler) GetDailyStats(c *gin.Context) {
	code := c.Param("code")
	days := 7
	if d := c.Query("days"); d != "" {
		if _, err := fmt.Sscanf(d, "%d", &days); err != nil || days < 1 || days > 90 {
			days = 7
		}
	}

	stats, err := h.clickProcessor.GetDailyStats(c.Request.Context(), code, days)
	if err != nil {
		h.logger.Warn("Failed to get daily stats", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *LinkHandler) respondLifecycleError(c *gin.Context, code string, err error, internalMsg string) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Destination must be an absolute http(s) URL",
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "You do not own this link",
		})
	default:
		h.logger.Error(internalMsg, zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: internalMsg,
		})
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
