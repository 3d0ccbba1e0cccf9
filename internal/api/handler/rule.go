package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bcnelson/firewalld-rule-manager/internal/domain"
	"github.com/bcnelson/firewalld-rule-manager/internal/service"
	"github.com/bcnelson/firewalld-rule-manager/internal/storage"
	"github.com/bcnelson/firewalld-rule-manager/internal/validation"
	"github.com/go-chi/chi/v5"
)

// RuleHandler handles firewall rule endpoints.
type RuleHandler struct {
	store       storage.Storage
	syncService *service.SyncService
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(store storage.Storage, syncService *service.SyncService) *RuleHandler {
	return &RuleHandler{store: store, syncService: syncService}
}

// ruleFromCreateRequest builds a FirewallRule from a create request,
// filling defaults for the optional fields.
func ruleFromCreateRequest(req *domain.CreateFirewallRuleRequest, now time.Time) *domain.FirewallRule {
	rule := &domain.FirewallRule{
		ID:          generateID(),
		Name:        req.Name,
		Enabled:     true,
		Protocol:    req.Protocol,
		Ports:       req.Ports,
		TrustedNets: req.TrustedNets,
		ICMPTypes:   req.ICMPTypes,
		Order:       domain.DefaultOrder,
		ApplyTo:     req.ApplyTo,
		Prefix:      req.Prefix,
		Zone:        req.Zone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Order != nil {
		rule.Order = *req.Order
	}
	if rule.ApplyTo == "" {
		rule.ApplyTo = domain.ApplyToAuto
	}
	return rule
}

// Create creates a new firewall rule.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFirewallRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	rule := ruleFromCreateRequest(&req, time.Now())

	if errs := validation.ValidateRule(rule); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	if err := h.store.CreateRule(r.Context(), rule); err != nil {
		handleError(w, err)
		return
	}

	SetRuleETag(w, rule)
	respondMutation(w, r, http.StatusCreated, rule, h.syncService)
}

// List lists all firewall rules in apply order.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListRules(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rules)
}

// Get gets a firewall rule by name.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, _ := url.PathUnescape(chi.URLParam(r, "name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	rule, err := h.store.GetRuleByName(r.Context(), name)
	if err != nil {
		handleError(w, err)
		return
	}

	SetRuleETag(w, rule)
	respondJSON(w, http.StatusOK, rule)
}

// Update updates a firewall rule.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	name, _ := url.PathUnescape(chi.URLParam(r, "name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	var req domain.UpdateFirewallRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.store.GetRuleByName(r.Context(), name)
	if err != nil {
		handleError(w, err)
		return
	}

	if !CheckRuleIfMatch(r, rule) {
		RespondPreconditionFailed(w, "rule", rule.ID, rule.UpdatedAt)
		return
	}

	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Protocol != nil {
		rule.Protocol = *req.Protocol
	}
	if req.Ports != nil {
		rule.Ports = req.Ports
	}
	if req.TrustedNets != nil {
		rule.TrustedNets = req.TrustedNets
	}
	if req.ICMPTypes != nil {
		rule.ICMPTypes = req.ICMPTypes
	}
	if req.Order != nil {
		rule.Order = *req.Order
	}
	if req.ApplyTo != nil {
		rule.ApplyTo = *req.ApplyTo
	}
	if req.Prefix != nil {
		rule.Prefix = *req.Prefix
	}
	if req.Zone != nil {
		rule.Zone = *req.Zone
	}

	if errs := validation.ValidateRule(rule); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	rule.UpdatedAt = time.Now()
	if err := h.store.UpdateRule(r.Context(), rule); err != nil {
		handleError(w, err)
		return
	}

	SetRuleETag(w, rule)
	respondMutation(w, r, http.StatusOK, rule, h.syncService)
}

// Delete deletes a firewall rule.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, _ := url.PathUnescape(chi.URLParam(r, "name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	rule, err := h.store.GetRuleByName(r.Context(), name)
	if err != nil {
		handleError(w, err)
		return
	}

	if !CheckRuleIfMatch(r, rule) {
		RespondPreconditionFailed(w, "rule", rule.ID, rule.UpdatedAt)
		return
	}

	if err := h.store.DeleteRule(r.Context(), rule.ID); err != nil {
		handleError(w, err)
		return
	}

	respondDelete(w, r, h.syncService)
}

// ReplaceState replaces the entire rule set with the provided state.
// Intended for configuration management agents that own the full desired
// state; the replacement is transactional.
func (h *RuleHandler) ReplaceState(w http.ResponseWriter, r *http.Request) {
	var state domain.RuleSetState
	if err := decodeJSON(r, &state); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now()
	rules := make([]*domain.FirewallRule, 0, len(state.Rules))
	var errs validation.ValidationErrors
	for i, req := range state.Rules {
		rule := ruleFromCreateRequest(&req, now)
		if ruleErrs := validation.ValidateRule(rule); ruleErrs.HasErrors() {
			for _, e := range ruleErrs {
				errs.Add(fmt.Sprintf("rules[%d].%s", i, e.Field), e.Value, e.Message)
			}
		}
		rules = append(rules, rule)
	}
	if errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	ctx := r.Context()

	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteAllRules(ctx); err != nil {
		handleError(w, err)
		return
	}

	for _, rule := range rules {
		if err := tx.CreateRule(ctx, rule); err != nil {
			handleError(w, err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		handleError(w, err)
		return
	}

	respondMutation(w, r, http.StatusOK, map[string]string{"status": "ok"}, h.syncService)
}
