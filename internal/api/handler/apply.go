package handler

import (
	"net/http"
	"strconv"

	"github.com/bcnelson/firewalld-rule-manager/internal/service"
	"github.com/bcnelson/firewalld-rule-manager/internal/storage"
	"github.com/go-chi/chi/v5"
)

// ApplyHandler handles compiled-object and apply endpoints.
type ApplyHandler struct {
	store       storage.Storage
	syncService *service.SyncService
}

// NewApplyHandler creates a new ApplyHandler.
func NewApplyHandler(store storage.Storage, syncService *service.SyncService) *ApplyHandler {
	return &ApplyHandler{store: store, syncService: syncService}
}

// Objects returns the compiled firewalld objects for the current rule set
// without applying them.
func (h *ApplyHandler) Objects(w http.ResponseWriter, r *http.Request) {
	set, err := h.syncService.GetCompiledObjects(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// Apply forces an immediate apply to firewalld.
func (h *ApplyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	resp, err := h.syncService.ForceApply(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ListVersions lists apply versions, newest first.
func (h *ApplyHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	versions, err := h.store.ListApplyVersions(r.Context(), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

// GetVersion gets a single apply version with its rendered objects.
func (h *ApplyHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	version, err := h.store.GetApplyVersion(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, version)
}

// Rollback re-applies a previous apply version.
func (h *ApplyHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	resp, err := h.syncService.Rollback(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
