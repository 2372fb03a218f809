package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination describes a page of a list with total entries.
func NewPagination(total, limit, offset int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit       int
	Offset      int
	WorkspaceID string    // Optional workspace filter
	State       TaskState // Optional task state filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50, Offset: 0}
}

// Clamp enforces limits (max 200, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 200 {
		o.Limit = 200
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// OrderRequest is the body of an order placement.
type OrderRequest struct {
	DishID      string   `json:"dish_id"`
	TableNumber int      `json:"table_number"`
	Quantity    int      `json:"quantity"`
	VIP         bool     `json:"is_vip"`
	Allergies   []string `json:"allergies,omitempty"`
}

// Validate reports field problems with an order request.
func (r *OrderRequest) Validate() []FieldError {
	var errs []FieldError
	if r.DishID == "" {
		errs = append(errs, FieldError{Field: "dish_id", Message: "dish_id is required"})
	}
	if r.TableNumber < 0 {
		errs = append(errs, FieldError{Field: "table_number", Message: "table_number must not be negative"})
	}
	if r.Quantity < 0 {
		errs = append(errs, FieldError{Field: "quantity", Message: "quantity must not be negative"})
	}
	return errs
}

// OrderReceipt is returned when an order is accepted.
type OrderReceipt struct {
	Task              Task     `json:"task"`
	AllergenConflicts []string `json:"allergen_conflicts,omitempty"`
}

// AllergyReport is the result of checking customer allergies against a dish.
type AllergyReport struct {
	DishID    string   `json:"dish_id"`
	DishName  string   `json:"dish_name"`
	Conflicts []string `json:"conflicts"`
	Message   string   `json:"message"`
}
