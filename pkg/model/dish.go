package model

import "github.com/google/uuid"

// Dish is a menu item. PrepMinutes is the current expected preparation time;
// the adaptive estimator rewrites it as orders complete.
type Dish struct {
	ID          string   `json:"id" yaml:"-"`
	WorkspaceID string   `json:"workspace_id" yaml:"-"`
	Name        string   `json:"name" yaml:"name"`
	PrepMinutes int      `json:"prep_minutes" yaml:"prep_minutes"`
	ImageURL    string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Ingredients []string `json:"ingredients" yaml:"ingredients"`
}

// NewDishID returns a fresh dish identifier.
func NewDishID() string {
	return "dish_" + uuid.New().String()
}

// Validate reports field problems with a dish definition.
func (d *Dish) Validate() []FieldError {
	var errs []FieldError
	if d.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	}
	if d.PrepMinutes < 1 {
		errs = append(errs, FieldError{Field: "prep_minutes", Message: "prep_minutes must be at least 1"})
	}
	return errs
}
