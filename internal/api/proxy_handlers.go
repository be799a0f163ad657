package api

import (
	"errors"
	"net/http"

	"github.com/beavernet/beavernet/internal/metrics"
	"github.com/beavernet/beavernet/internal/store"
)

func (s *Server) handleListProxies(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.repo.ProxyConfigs())
}

func (s *Server) handleCreateProxy(w http.ResponseWriter, r *http.Request) {
	var req store.ProxyConfig
	if !BindJSON(w, r, &req) {
		return
	}

	cfg, err := s.repo.AddProxyConfig(req)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			WriteError(w, http.StatusBadRequest, verr.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.sync.ApplyProxy(cfg)
	metrics.Get().ProxyConfigs.Set(float64(s.repo.ProxyCount()))
	s.hub.EmitProxyCreated(cfg.ID, cfg.SourcePort, cfg.DestinationIP, cfg.DestinationPort)
	s.recordAudit(r, "proxy.create", "proxy/"+cfg.ID, http.StatusCreated,
		map[string]any{"sourcePort": cfg.SourcePort, "destinationIp": cfg.DestinationIP, "destinationPort": cfg.DestinationPort})

	WriteJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleDeleteProxy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cfg, ok := s.repo.GetProxyConfig(id)
	if !ok || !s.repo.DeleteProxyConfig(id) {
		WriteError(w, http.StatusNotFound, "Proxy config not found")
		return
	}

	s.sync.RevertProxy(cfg)
	metrics.Get().ProxyConfigs.Set(float64(s.repo.ProxyCount()))
	s.hub.EmitProxyDeleted(id)
	s.recordAudit(r, "proxy.delete", "proxy/"+id, http.StatusOK, nil)

	SuccessResponse(w)
}
