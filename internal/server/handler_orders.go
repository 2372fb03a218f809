package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/brigade/internal/allergen"
	"github.com/me/brigade/pkg/model"
)

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}

	var req model.OrderRequest
	if !decodeJSON(w, r, reqID, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid order", errs...))
		return
	}
	dish, ok := s.lookupDish(w, r, reqID, ws.ID, req.DishID)
	if !ok {
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	task := model.NewTask(ws.ID, dish, req.TableNumber, quantity, req.VIP, s.now())
	task.Allergies = req.Allergies

	submitted, err := s.scheduler.Submit(r.Context(), task)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}

	conflicts := allergen.Conflicts(dish.Ingredients, req.Allergies)
	s.logAllergyAlert(dish, conflicts, submitted.ID)

	respondCreated(w, reqID, model.OrderReceipt{
		Task:              submitted,
		AllergenConflicts: conflicts,
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	queue := s.scheduler.ActiveQueue(ws.ID)
	respondList(w, reqID, queue, model.NewPagination(len(queue), len(queue), 0))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	task, ok := s.scheduler.Next(ws.ID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if task, ok := s.scheduler.Lookup(ws.ID, id); ok {
		respondOK(w, reqID, task)
		return
	}

	// Not in memory: the row may predate a restart.
	stored, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if stored == nil || stored.WorkspaceID != ws.ID {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("order", id))
		return
	}
	respondOK(w, reqID, stored)
}

// handleListOrders pages through the stored orders of a workspace, newest
// first, optionally filtered by ?state=.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	opts := listOptions(r)
	opts.WorkspaceID = ws.ID
	if v := r.URL.Query().Get("state"); v != "" {
		state := model.TaskState(strings.ToUpper(v))
		if _, known := model.ValidTaskTransitions[state]; !known {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid state filter",
				model.FieldError{Field: "state", Message: "must be ACTIVE or COMPLETED"}))
			return
		}
		opts.State = state
	}

	list, total, err := s.store.ListTasks(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if list == nil {
		list = []*model.Task{}
	}
	opts.Clamp()
	respondList(w, reqID, list, model.NewPagination(total, opts.Limit, opts.Offset))
}

func (s *Server) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	task, err := s.scheduler.Complete(r.Context(), ws.ID, chi.URLParam(r, "id"))
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	task, err := s.scheduler.Undo(r.Context(), ws.ID)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	history := s.scheduler.History(ws.ID)
	respondList(w, reqID, history, model.NewPagination(len(history), len(history), 0))
}

func (s *Server) handlePurgeOrder(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.scheduler.Purge(r.Context(), ws.ID, id); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "deleted": "true"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}
	respondOK(w, reqID, s.scheduler.Stats(ws.ID))
}
