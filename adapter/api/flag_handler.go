package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/flagwise/internal/flags/application"
	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// maxBodyBytes caps administrative request bodies.
const maxBodyBytes = 1 << 20

// DecisionEvaluator answers flag decisions.
type DecisionEvaluator interface {
	Evaluate(ctx context.Context, flagName, subjectID string) application.Decision
}

// FlagAdministrator manages flag definitions.
type FlagAdministrator interface {
	Upsert(ctx context.Context, flagName string, opts domain.UpsertOptions) (*domain.FlagDefinition, error)
	Delete(ctx context.Context, flagName string) error
	Get(ctx context.Context, flagName string) (*domain.FlagDefinition, error)
	ListAll(ctx context.Context) ([]*domain.FlagDefinition, error)
}

// FlagHandler handles flag API requests.
type FlagHandler struct {
	evaluator DecisionEvaluator
	admin     FlagAdministrator
	logger    *slog.Logger
}

// NewFlagHandler creates a new flag handler.
func NewFlagHandler(evaluator DecisionEvaluator, admin FlagAdministrator, logger *slog.Logger) *FlagHandler {
	return &FlagHandler{
		evaluator: evaluator,
		admin:     admin,
		logger:    observability.WithComponent(logger, "api"),
	}
}

type flagListResponse struct {
	Flags []*domain.FlagDefinition `json:"flags"`
	Total int                      `json:"total"`
}

// IsEnabled handles GET /api/v1/flags/{name}/enabled?subject=
func (h *FlagHandler) IsEnabled(w http.ResponseWriter, r *http.Request) {
	d := h.evaluator.Evaluate(r.Context(), r.PathValue("name"), r.URL.Query().Get("subject"))
	writeJSON(w, http.StatusOK, d)
}

// ListFlags handles GET /api/v1/flags
func (h *FlagHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.admin.ListAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "failed to list flags", err)
		return
	}
	writeJSON(w, http.StatusOK, flagListResponse{Flags: flags, Total: len(flags)})
}

// GetFlag handles GET /api/v1/flags/{name}
func (h *FlagHandler) GetFlag(w http.ResponseWriter, r *http.Request) {
	flag, err := h.admin.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeDomainError(w, r, "failed to get flag", err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

// UpsertFlag handles PUT and POST /api/v1/flags/{name}. Absent body fields keep
// their stored value.
func (h *FlagHandler) UpsertFlag(w http.ResponseWriter, r *http.Request) {
	raw := map[string]any{}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	opts, err := domain.ParseUpsertOptions(raw)
	if err != nil {
		h.writeDomainError(w, r, "invalid flag definition", err)
		return
	}

	flag, err := h.admin.Upsert(r.Context(), r.PathValue("name"), opts)
	if err != nil {
		h.writeDomainError(w, r, "failed to upsert flag", err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

// DeleteFlag handles DELETE /api/v1/flags/{name}
func (h *FlagHandler) DeleteFlag(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.admin.Delete(r.Context(), name); err != nil {
		h.writeDomainError(w, r, "failed to delete flag", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "deleted": true})
}

func (h *FlagHandler) writeDomainError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFlagNotFound):
		writeError(w, http.StatusNotFound, "Flag not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.logger.WarnContext(r.Context(), msg, observability.ErrorKey, err)
		writeError(w, http.StatusServiceUnavailable, "Flag store unavailable")
	default:
		h.logger.ErrorContext(r.Context(), msg, observability.ErrorKey, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
