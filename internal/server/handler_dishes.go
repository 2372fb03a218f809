package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/brigade/internal/allergen"
	"github.com/me/brigade/internal/menu"
	"github.com/me/brigade/pkg/model"
)

type dishRequest struct {
	Name        string   `json:"name"`
	PrepMinutes int      `json:"prep_minutes"`
	ImageURL    string   `json:"image_url"`
	Ingredients []string `json:"ingredients"`
}

func (d dishRequest) apply(dish *model.Dish) {
	dish.Name = d.Name
	dish.PrepMinutes = d.PrepMinutes
	dish.ImageURL = d.ImageURL
	dish.Ingredients = d.Ingredients
	if dish.Ingredients == nil {
		dish.Ingredients = []string{}
	}
}

func (s *Server) handleListDishes(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}

	dishes, err := s.store.ListDishes(r.Context(), ws.ID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if dishes == nil {
		dishes = []*model.Dish{}
	}
	respondList(w, reqID, dishes, model.NewPagination(len(dishes), len(dishes), 0))
}

func (s *Server) handleCreateDish(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}

	var req dishRequest
	if !decodeJSON(w, r, reqID, &req) {
		return
	}
	dish := &model.Dish{ID: model.NewDishID(), WorkspaceID: ws.ID}
	req.apply(dish)
	if errs := dish.Validate(); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid dish", errs...))
		return
	}

	if err := s.store.CreateDish(r.Context(), dish); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondCreated(w, reqID, dish)
}

func (s *Server) handleGetDish(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	dish, ok := s.requireDish(w, r)
	if !ok {
		return
	}
	respondOK(w, reqID, dish)
}

func (s *Server) handleUpdateDish(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	dish, ok := s.requireDish(w, r)
	if !ok {
		return
	}

	var req dishRequest
	if !decodeJSON(w, r, reqID, &req) {
		return
	}
	req.apply(dish)
	if errs := dish.Validate(); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid dish", errs...))
		return
	}

	if err := s.store.UpdateDish(r.Context(), dish); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, dish)
}

func (s *Server) handleDeleteDish(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	dish, ok := s.requireDish(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteDish(r.Context(), dish.ID); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, map[string]string{"id": dish.ID, "deleted": "true"})
}

func (s *Server) handleSeedMenu(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}

	created, err := menu.Seed(r.Context(), s.store, ws.ID, s.menu)
	if errors.Is(err, menu.ErrAlreadySeeded) {
		respondError(w, reqID, http.StatusConflict,
			model.NewConflictError("workspace "+ws.ID+" already has a menu"))
		return
	}
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	s.logger.Info("menu seeded", "workspace_id", ws.ID, "dishes", len(created))
	respondCreated(w, reqID, created)
}

func (s *Server) handleUnloadMenu(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return
	}

	n, err := s.store.DeleteDishesByWorkspace(r.Context(), ws.ID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	s.logger.Info("menu unloaded", "workspace_id", ws.ID, "dishes", n)
	respondOK(w, reqID, map[string]any{"workspace_id": ws.ID, "deleted": n})
}

func (s *Server) handleCheckAllergies(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	dish, ok := s.requireDish(w, r)
	if !ok {
		return
	}

	var req struct {
		Allergies []string `json:"allergies"`
	}
	if !decodeJSON(w, r, reqID, &req) {
		return
	}

	conflicts := allergen.Conflicts(dish.Ingredients, req.Allergies)
	s.logAllergyAlert(dish, conflicts, "")
	if conflicts == nil {
		conflicts = []string{}
	}
	respondOK(w, reqID, model.AllergyReport{
		DishID:    dish.ID,
		DishName:  dish.Name,
		Conflicts: conflicts,
		Message:   allergen.Message(conflicts),
	})
}

// requireDish loads the {id} dish of the {wid} workspace, answering 404 when
// either is missing or the dish belongs elsewhere.
func (s *Server) requireDish(w http.ResponseWriter, r *http.Request) (*model.Dish, bool) {
	reqID := RequestIDFromContext(r.Context())
	ws, ok := s.requireWorkspace(w, r)
	if !ok {
		return nil, false
	}
	return s.lookupDish(w, r, reqID, ws.ID, chi.URLParam(r, "id"))
}

func (s *Server) lookupDish(w http.ResponseWriter, r *http.Request, reqID, workspaceID, dishID string) (*model.Dish, bool) {
	dish, err := s.store.GetDish(r.Context(), dishID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return nil, false
	}
	if dish == nil || dish.WorkspaceID != workspaceID {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("dish", dishID))
		return nil, false
	}
	return dish, true
}

// logAllergyAlert raises a kitchen alert for conflicting ingredients.
func (s *Server) logAllergyAlert(dish *model.Dish, conflicts []string, orderID string) {
	if len(conflicts) == 0 {
		return
	}
	s.logger.Warn("kitchen allergy alert",
		"workspace_id", dish.WorkspaceID,
		"dish", dish.Name,
		"dish_id", dish.ID,
		"order_id", orderID,
		"avoid", conflicts,
	)
}
