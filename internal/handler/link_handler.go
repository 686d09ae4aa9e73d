package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cmla-cc/shortlink/internal/repository"
	"github.com/cmla-cc/shortlink/internal/service"
)

type CreateLinkRequest struct {
	OriginalURL string `json:"originalUrl"`
	Alias       string `json:"alias"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type LinkHandler struct {
	service *service.LinkService
	logger  *zap.Logger
}

func NewLinkHandler(service *service.LinkService) *LinkHandler {
	return &LinkHandler{
		service: service,
		logger:  zap.L().With(zap.String("component", "LinkHandler")),
	}
}

// CreateLink handles POST /links: validate, render the QR artifact, persist
// the record and return both.
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_JSON",
		})
		return
	}

	record, err := h.service.Create(c.Request.Context(), req.OriginalURL, req.Alias)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetLink handles GET /links?alias=X: return the stored record with freshly
// rendered QR markup.
func (h *LinkHandler) GetLink(c *gin.Context) {
	alias := strings.TrimSpace(c.Query("alias"))

	record, err := h.service.FetchWithQR(c.Request.Context(), alias)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Resolve handles GET /s/*alias. A hit redirects to the original URL; a miss
// redirects to the landing page with the attempted alias echoed back, never a
// JSON error.
func (h *LinkHandler) Resolve(c *gin.Context) {
	alias := decodeAliasPath(c.Param("alias"))

	target, err := h.service.ResolveAndCount(c.Request.Context(), alias)
	if err != nil {
		if !errors.Is(err, repository.ErrLinkNotFound) {
			h.logger.Error("Failed to resolve alias", zap.Error(err), zap.String("alias", alias))
		}
		landing := url.URL{
			Path:     "/",
			RawQuery: url.Values{"error": {"1"}, "alias": {alias}}.Encode(),
		}
		c.Redirect(http.StatusFound, landing.String())
		return
	}

	c.Redirect(http.StatusFound, target)
}

// LegacyRedirect handles GET /api/*path, the old lookup entry point: it
// forwards to the landing page with the alias as a query parameter.
func (h *LinkHandler) LegacyRedirect(c *gin.Context) {
	alias := decodeAliasPath(c.Param("path"))

	landing := url.URL{
		Path:     "/",
		RawQuery: url.Values{"alias": {alias}}.Encode(),
	}
	c.Redirect(http.StatusFound, landing.String())
}

// decodeAliasPath strips the wildcard's leading slash and percent-decodes the
// remainder. Aliases may themselves contain slashes.
func decodeAliasPath(raw string) string {
	raw = strings.TrimPrefix(raw, "/")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func (h *LinkHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingAlias):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Missing alias",
			Code:  "MISSING_ALIAS",
		})
	case errors.Is(err, service.ErrAliasTooLong):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid or too long alias",
			Code:  "ALIAS_TOO_LONG",
		})
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid URL",
			Code:  "INVALID_URL",
		})
	case errors.Is(err, repository.ErrAliasExists):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "Link Already Exists",
			Code:  "ALIAS_EXISTS",
		})
	case errors.Is(err, repository.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Link Doesn't Exist",
			Code:  "LINK_NOT_FOUND",
		})
	case errors.Is(err, repository.ErrStore):
		h.logger.Error("Store error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Store error",
			Code:  "STORE_ERROR",
		})
	default:
		h.logger.Error("Unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
