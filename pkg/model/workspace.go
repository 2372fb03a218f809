package model

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is an isolated kitchen. All scheduling state is partitioned by
// its ID.
type Workspace struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AdminEmail string    `json:"admin_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewWorkspaceID returns a fresh workspace identifier.
func NewWorkspaceID() string {
	return "ws_" + uuid.New().String()
}
