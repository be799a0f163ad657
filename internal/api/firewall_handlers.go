package api

import (
	"errors"
	"net/http"

	"github.com/beavernet/beavernet/internal/metrics"
	"github.com/beavernet/beavernet/internal/store"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.repo.FirewallRules())
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req store.FirewallRule
	if !BindJSON(w, r, &req) {
		return
	}

	rule, err := s.repo.AddFirewallRule(req)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			WriteError(w, http.StatusBadRequest, verr.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.sync.ApplyRule(rule)
	metrics.Get().FirewallRules.Set(float64(s.repo.RuleCount()))
	s.hub.EmitRuleCreated(rule.ID, rule.Port, rule.Protocol, rule.Action)
	s.recordAudit(r, "rule.create", "firewall/"+rule.ID, http.StatusCreated,
		map[string]any{"port": rule.Port, "protocol": rule.Protocol, "action": rule.Action})

	WriteJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rule, ok := s.repo.GetFirewallRule(id)
	if !ok || !s.repo.DeleteFirewallRule(id) {
		WriteError(w, http.StatusNotFound, "Rule not found")
		return
	}

	// Revert with the fields stored on the record, not re-derived state
	s.sync.RevertRule(rule)
	metrics.Get().FirewallRules.Set(float64(s.repo.RuleCount()))
	s.hub.EmitRuleDeleted(id)
	s.recordAudit(r, "rule.delete", "firewall/"+id, http.StatusOK, nil)

	SuccessResponse(w)
}
