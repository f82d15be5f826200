package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gyaneshwarpardhi/fraudgate/internal/condition"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

// ruleRequest is the body of POST and PUT /api/rules. Pointer fields
// distinguish "absent" from the zero value.
type ruleRequest struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Enabled      *bool        `json:"enabled"`
	Priority     *int         `json:"priority"`
	FieldPath    string       `json:"fieldPath"`
	Operator     string       `json:"operator"`
	Value        string       `json:"value"`
	ActionType   string       `json:"actionType"`
	ActionConfig actionConfig `json:"actionConfig"`
}

// actionConfig accepts either a JSON-encoded string or an inline object.
type actionConfig string

func (c *actionConfig) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*c = ""
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = actionConfig(s)
	case len(trimmed) > 0 && trimmed[0] == '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return err
		}
		*c = actionConfig(buf.String())
	default:
		return fmt.Errorf("actionConfig must be a string or an object")
	}
	return nil
}

// toRule converts the request; base supplies Enabled and Priority when absent.
func (req *ruleRequest) toRule(base rule.Rule) rule.Rule {
	r := base
	r.Name = req.Name
	r.Description = req.Description
	r.FieldPath = req.FieldPath
	r.Value = req.Value
	r.ActionType = rule.ActionKind(strings.ToUpper(strings.TrimSpace(req.ActionType)))
	r.ActionConfig = string(req.ActionConfig)
	if op, ok := condition.ParseOperator(req.Operator); ok {
		r.Operator = op
	} else {
		r.Operator = condition.Operator(req.Operator)
	}
	if req.Enabled != nil {
		r.Enabled = *req.Enabled
	}
	if req.Priority != nil {
		r.Priority = *req.Priority
	}
	return r
}

// option is one entry of the operators and actions catalogues.
type option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func decodeRule(r *http.Request) (*ruleRequest, error) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &req, nil
}

func ruleID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", raw)
	}
	return id, nil
}

// GET /api/rules
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.deps.Rules.List(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if rules == nil {
		rules = []rule.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// GET /api/rules/{id}
func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	found, err := h.deps.Rules.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// POST /api/rules
func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRule(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.deps.Rules.Create(r.Context(), req.toRule(rule.Rule{
		Enabled:  true,
		Priority: rule.DefaultPriority,
	}))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.Info("rule created", "rule_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

// PUT /api/rules/{id}
func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeRule(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := h.deps.Rules.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	updated, err := h.deps.Rules.Update(r.Context(), id, req.toRule(*existing))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.Info("rule updated", "rule_id", id)
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/rules/{id}
func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.deps.Rules.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.Info("rule deleted", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// PATCH /api/rules/{id}/toggle
func (h *Handler) toggleRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	toggled, err := h.deps.Rules.Toggle(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.Info("rule toggled", "rule_id", id, "enabled", toggled.Enabled)
	writeJSON(w, http.StatusOK, toggled)
}

// GET /api/rules/operators
func (h *Handler) listOperators(w http.ResponseWriter, r *http.Request) {
	ops := condition.Operators()
	out := make([]option, len(ops))
	for i, op := range ops {
		out[i] = option{Value: string(op), Label: op.Label()}
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/rules/actions
func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	kinds := rule.ActionKinds()
	out := make([]option, len(kinds))
	for i, k := range kinds {
		out[i] = option{Value: string(k), Label: k.Label()}
	}
	writeJSON(w, http.StatusOK, out)
}
