package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/brigade/internal/menu"
	"github.com/me/brigade/pkg/model"
)

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Name       string `json:"name"`
		AdminEmail string `json:"admin_email"`
	}
	if !decodeJSON(w, r, reqID, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "name", Message: "name is required"}))
		return
	}

	ws := &model.Workspace{
		ID:         model.NewWorkspaceID(),
		Name:       req.Name,
		AdminEmail: req.AdminEmail,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateWorkspace(r.Context(), ws); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	s.logger.Info("workspace created", "workspace_id", ws.ID, "name", ws.Name)

	if s.config.SeedMenu {
		if _, err := menu.Seed(r.Context(), s.store, ws.ID, s.menu); err != nil && !errors.Is(err, menu.ErrAlreadySeeded) {
			s.logger.Error("seed menu", "workspace_id", ws.ID, "error", err)
		}
	}

	respondCreated(w, reqID, ws)
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := listOptions(r)

	list, total, err := s.store.ListWorkspaces(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if list == nil {
		list = []*model.Workspace{}
	}
	opts.Clamp()
	respondList(w, reqID, list, model.NewPagination(total, opts.Limit, opts.Offset))
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	respondOK(w, reqID, ws)
}

// requireWorkspace loads the {wid} workspace, answering 404 when it does
// not exist.
func (s *Server) requireWorkspace(w http.ResponseWriter, r *http.Request) (*model.Workspace, bool) {
	reqID := RequestIDFromContext(r.Context())
	wid := chi.URLParam(r, "wid")

	ws, err := s.store.GetWorkspace(r.Context(), wid)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return nil, false
	}
	if ws == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workspace", wid))
		return nil, false
	}
	return ws, true
}

// listOptions reads ?limit= and ?offset=.
func listOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	return opts
}
