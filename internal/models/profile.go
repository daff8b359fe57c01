package models

import (
	"time"

	"github.com/google/uuid"
)

const RoleAdmin = "admin"

// Profile is the application-side user record keyed by the auth identity id.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
