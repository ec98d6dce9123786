package user

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the system
type Role string

const (
	RoleClient Role = "client"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

// IsValidRole checks if role is one of the known roles
func IsValidRole(role string) bool {
	switch Role(role) {
	case RoleClient, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// Profile is the part of a user account this service reads. Accounts are
// created by the hosted auth provider and mirrored into the users table.
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      Role      `db:"role" json:"role"`
	IsBanned  bool      `db:"is_banned" json:"is_banned"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsWorker returns true if user is a worker
func (p *Profile) IsWorker() bool {
	return p.Role == RoleWorker
}

// IsClient returns true if user is a client
func (p *Profile) IsClient() bool {
	return p.Role == RoleClient
}

// IsAdmin returns true if user is an admin
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
