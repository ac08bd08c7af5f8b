// Package http provides HTTP handlers for title stock administration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/almacen/catalog/internal/httputil"
	"github.com/almacen/catalog/internal/stock/http/dto"
	stockUseCase "github.com/almacen/catalog/internal/stock/usecase"
	customValidation "github.com/almacen/catalog/internal/validation"
)

// TitleHandler handles HTTP requests for title stock operations.
type TitleHandler struct {
	titleUseCase stockUseCase.TitleUseCase
	logger       *slog.Logger
}

// NewTitleHandler creates a new title handler with required dependencies.
func NewTitleHandler(titleUseCase stockUseCase.TitleUseCase, logger *slog.Logger) *TitleHandler {
	return &TitleHandler{
		titleUseCase: titleUseCase,
		logger:       logger,
	}
}

// CreateHandler registers a new title.
// POST /v1/titles - Returns 201 Created.
func (h *TitleHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	title, err := h.titleUseCase.Create(c.Request.Context(), req.ID, req.Name, req.InitialStock)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapTitleToResponse(title))
}

// GetHandler returns a title by id.
// GET /v1/titles/:id
func (h *TitleHandler) GetHandler(c *gin.Context) {
	id, err := httputil.ParseInt64Param(c, "id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	title, err := h.titleUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTitleToResponse(title))
}

// ListHandler returns titles ordered by id.
// GET /v1/titles?offset=0&limit=50
func (h *TitleHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	titles, err := h.titleUseCase.List(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTitlesToListResponse(titles))
}

// RestockHandler adds units to a title.
// POST /v1/titles/:id/restock
func (h *TitleHandler) RestockHandler(c *gin.Context) {
	id, err := httputil.ParseInt64Param(c, "id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var req dto.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	title, err := h.titleUseCase.Restock(c.Request.Context(), id, req.Quantity)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTitleToResponse(title))
}

// RetireHandler deactivates a title. Retired titles reject every purchase that references them.
// POST /v1/titles/:id/retire
func (h *TitleHandler) RetireHandler(c *gin.Context) {
	id, err := httputil.ParseInt64Param(c, "id")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	title, err := h.titleUseCase.Retire(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTitleToResponse(title))
}
