package posimport

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veranda-erp/veranda-erp/internal/platform/httpx"
	"github.com/veranda-erp/veranda-erp/internal/shared"
)

const maxUploadBytes = 64 << 20

// Handler exposes the import endpoints.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the import HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches the POS import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/imports", h.submit)
	r.Get("/imports/{runID}", h.getRun)
	r.Get("/days/{day}/sales", h.dailySales)
	r.Get("/days/{day}/summary", h.itemSummary)
	r.Get("/days/{day}/products", h.dayProducts)
	r.Put("/profiles/{vendor}", h.upsertProfile)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "multipart form expected")
		return
	}
	propertyID, err := strconv.ParseInt(r.FormValue("property_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "property_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file is required")
		return
	}
	defer file.Close()

	run, err := h.service.Submit(r.Context(), SubmitInput{
		PropertyID: propertyID,
		Vendor:     r.FormValue("vendor"),
		Kind:       ImportKind(r.FormValue("kind")),
		FileName:   header.Filename,
		File:       file,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrProfileNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, shared.ErrIdempotencyConflict):
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
		default:
			h.logger.Error("submit import", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusAccepted, RunResponse{Run: run})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid run id")
		return
	}
	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := RunResponse{Run: run}
	if run.Status == RunStatusDone || run.Status == RunStatusFailed {
		resp.Message = run.Summary.Message()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	propertyID, day, ok := h.dayParams(w, r)
	if !ok {
		return
	}
	sales, err := h.service.DailySales(r.Context(), propertyID, day)
	if err != nil {
		h.logger.Error("daily sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"day": day, "items": sales})
}

func (h *Handler) itemSummary(w http.ResponseWriter, r *http.Request) {
	propertyID, day, ok := h.dayParams(w, r)
	if !ok {
		return
	}
	summary, err := h.service.ItemSummary(r.Context(), propertyID, day)
	if err != nil {
		h.logger.Error("item summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"day": day, "items": summary})
}

func (h *Handler) dayProducts(w http.ResponseWriter, r *http.Request) {
	propertyID, day, ok := h.dayParams(w, r)
	if !ok {
		return
	}
	entries, err := h.service.DayProductIndex(r.Context(), propertyID, day)
	if err != nil {
		h.logger.Error("day products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"day": day, "items": entries})
}

func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request) {
	var req UpsertProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	profile, err := h.service.UpsertProfile(r.Context(), VendorProfile{
		PropertyID:    req.PropertyID,
		Vendor:        chi.URLParam(r, "vendor"),
		Format:        FileFormat(req.Format),
		Delimiter:     req.Delimiter,
		Columns:       req.Columns,
		TimeLayouts:   req.TimeLayouts,
		DateLayouts:   req.DateLayouts,
		RolloverHour:  req.RolloverHour,
		DecimalComma:  req.DecimalComma,
		SignedRefunds: req.SignedRefunds,
		VoidValues:    req.VoidValues,
	})
	if err != nil {
		h.logger.Error("upsert profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) dayParams(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	propertyID, err := strconv.ParseInt(r.URL.Query().Get("property_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "property_id is required")
		return 0, "", false
	}
	day := chi.URLParam(r, "day")
	if len(day) != len(dayFormat) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "day must be YYYY-MM-DD")
		return 0, "", false
	}
	return propertyID, day, true
}
