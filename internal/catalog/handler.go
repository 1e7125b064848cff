package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/veranda-erp/veranda-erp/internal/platform/httpx"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the catalog HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/articles", h.list)
	r.Get("/articles/{vendorProductID}", h.get)
	r.Put("/articles/{vendorProductID}", h.upsert)
}

// UpsertArticleRequest is the payload for creating or replacing an article.
type UpsertArticleRequest struct {
	PropertyID int64   `json:"property_id" validate:"required"`
	Name       string  `json:"name" validate:"required"`
	Category   string  `json:"category"`
	TaxRate    float64 `json:"tax_rate" validate:"gte=0,lte=100"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(r.URL.Query().Get("property_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "property_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	articles, total, err := h.service.List(r.Context(), propertyID, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		h.logger.Error("list articles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": articles, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(r.URL.Query().Get("property_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "property_id is required")
		return
	}
	article, err := h.service.Get(r.Context(), propertyID, chi.URLParam(r, "vendorProductID"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get article", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertArticleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	article, err := h.service.Upsert(r.Context(), Article{
		PropertyID:      req.PropertyID,
		VendorProductID: chi.URLParam(r, "vendorProductID"),
		Name:            req.Name,
		Category:        req.Category,
		TaxRate:         req.TaxRate,
	})
	if err != nil {
		h.logger.Error("upsert article", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, article)
}
