package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/crabcut/shortener/internal/errors"
	"github.com/crabcut/shortener/internal/model"
)

// URLService is the resolver surface the HTTP layer consumes.
type URLService interface {
	CreateShortURL(ctx context.Context, req *model.CreateURLRequest) (*model.CreateURLResponse, error)
	ResolveURL(ctx context.Context, shortCode string, meta model.ClickMetadata) (string, error)
}

type URLHandler struct {
	urlService URLService
}

func NewURLHandler(urlService URLService) *URLHandler {
	return &URLHandler{
		urlService: urlService,
	}
}

// CreateURL handles POST /create.
func (h *URLHandler) CreateURL(c *gin.Context) {
	var req model.CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "Invalid input",
		})
		return
	}

	response, err := h.urlService.CreateShortURL(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RedirectURL handles GET /:shortCode. The redirect is answered as soon as
// the long URL is known; click side effects run in the background.
func (h *URLHandler) RedirectURL(c *gin.Context) {
	shortCode := c.Param("shortCode")
	if shortCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "Short code is required",
		})
		return
	}

	meta := model.ClickMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}

	longURL, err := h.urlService.ResolveURL(c.Request.Context(), shortCode, meta)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Redirect(http.StatusFound, longURL)
}

// handleError maps the internal error taxonomy onto the five client-visible
// HTTP outcomes. Nothing beyond a generic message leaks out.
func (h *URLHandler) handleError(c *gin.Context, err error) {
	if apperrors.IsValidationError(err) {
		validationErr := apperrors.GetValidationError(err)

		message := "Invalid input"
		if validationErr.Field == "custom_alias" {
			message = "Invalid alias"
		}

		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": message,
		})
		return
	}

	if errors.Is(err, apperrors.ErrAliasExists) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "alias_exists",
			"message": "Alias already exists",
		})
		return
	}

	if errors.Is(err, apperrors.ErrURLNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "url_not_found",
			"message": "Short URL not found",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "An unexpected error occurred",
	})
}
