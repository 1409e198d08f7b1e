package quote

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tour-quote/internal/common"
	"github.com/noah-isme/tour-quote/internal/lock"
	"github.com/noah-isme/tour-quote/internal/pricing"
)

const defaultMaxBodyBytes = 1 << 20

// Handler exposes the quote endpoints.
type Handler struct {
	service  *Service
	writer   *Writer
	validate *validator.Validate
	logger   zerolog.Logger
	maxBody  int64
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service      *Service
	Writer       *Writer
	Validator    *validator.Validate
	Logger       zerolog.Logger
	MaxBodyBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = NewValidator()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Handler{service: cfg.Service, writer: cfg.Writer, validate: v, logger: cfg.Logger, maxBody: maxBody}
}

// Mount registers the quote routes. previewMW wraps only the preview route;
// draftMW wraps only the debounced draft route.
func (h *Handler) Mount(r chi.Router, previewMW, draftMW []func(http.Handler) http.Handler) {
	r.With(previewMW...).Post("/quotes/preview", h.Preview)
	r.Route("/proposals/{proposalID}/quote", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Save)
		r.Delete("/", h.Delete)
		r.With(draftMW...).Post("/draft", h.Draft)
		r.Get("/verify", h.Verify)
	})
}

// Preview handles POST /api/v1/quotes/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.service.Preview(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Save handles PUT /api/v1/proposals/{proposalID}/quote.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	proposalID := chi.URLParam(r, "proposalID")
	if h.writer != nil {
		h.writer.Discard(proposalID)
	}
	rec, err := h.service.Save(r.Context(), proposalID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Draft handles POST /api/v1/proposals/{proposalID}/quote/draft.
func (h *Handler) Draft(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || h.writer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote writer not configured", nil)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	proposalID := strings.TrimSpace(chi.URLParam(r, "proposalID"))
	prepared, err := h.service.Prepare(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.writer.Submit(proposalID, prepared); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{
		"proposalId":      proposalID,
		"settingsVersion": prepared.SettingsVersion,
		"saveAfterMs":     h.writer.delay().Milliseconds(),
	}})
}

// Get handles GET /api/v1/proposals/{proposalID}/quote.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "proposalID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Delete handles DELETE /api/v1/proposals/{proposalID}/quote. A pending draft
// for the proposal is dropped as well.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	proposalID := chi.URLParam(r, "proposalID")
	discarded := h.writer != nil && h.writer.Discard(proposalID)
	err := h.service.Delete(r.Context(), proposalID)
	if err != nil && !(discarded && errors.Is(err, ErrNotFound)) {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify handles GET /api/v1/proposals/{proposalID}/quote/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	result, err := h.service.Verify(r.Context(), chi.URLParam(r, "proposalID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return Request{}, false
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read request body", nil)
		return Request{}, false
	}
	req, fields, err := DecodeRequest(body, h.validate)
	if err != nil {
		appErr := common.BadRequest("INVALID_INPUT", err.Error(), err)
		if len(fields) > 0 {
			appErr = appErr.WithDetails(map[string]any{"fields": fields})
		}
		common.WriteError(w, appErr)
		return Request{}, false
	}
	return req, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrConfiguration):
		h.logger.Error().Err(err).Msg("pricing settings unavailable")
		common.JSONError(w, http.StatusServiceUnavailable, "SETTINGS_UNAVAILABLE", "pricing settings are unavailable", nil)
	case errors.Is(err, pricing.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no quote stored for proposal", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "QUOTE_BUSY", "another save for this proposal is in progress", nil)
	case errors.Is(err, ErrSuperseded):
		common.JSONError(w, http.StatusConflict, "QUOTE_SUPERSEDED", "a newer quote is already stored for this proposal", nil)
	case errors.Is(err, ErrWriterClosed):
		common.JSONError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "quote writer is shutting down", nil)
	default:
		h.logger.Error().Err(err).Msg("quote request failed")
		common.WriteError(w, err)
	}
}
