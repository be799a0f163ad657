package api

import (
	"errors"
	"net/http"

	"github.com/beavernet/beavernet/internal/events"
	"github.com/beavernet/beavernet/internal/store"
)

// Panels are dashboard shortcuts; listing them is public so the login page
// can show them, but mutation requires a session.

func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.repo.Panels())
}

func (s *Server) handleCreatePanel(w http.ResponseWriter, r *http.Request) {
	var req store.Panel
	if !BindJSON(w, r, &req) {
		return
	}

	panel, err := s.repo.AddPanel(req)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			WriteError(w, http.StatusBadRequest, verr.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.hub.Publish(events.Event{
		Type:   events.EventPanelCreated,
		Source: "api",
		Data:   events.PanelChangeData{ID: panel.ID, Title: panel.Title},
	})
	s.recordAudit(r, "panel.create", "panel/"+panel.ID, http.StatusCreated,
		map[string]any{"title": panel.Title})

	WriteJSON(w, http.StatusCreated, panel)
}

func (s *Server) handleDeletePanel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if !s.repo.DeletePanel(id) {
		WriteError(w, http.StatusNotFound, "Panel not found")
		return
	}

	s.hub.Publish(events.Event{
		Type:   events.EventPanelDeleted,
		Source: "api",
		Data:   events.PanelChangeData{ID: id},
	})
	s.recordAudit(r, "panel.delete", "panel/"+id, http.StatusOK, nil)

	SuccessResponse(w)
}
