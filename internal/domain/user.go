package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates the three kinds of accounts.
type Role string

const (
	RoleUser     Role = "user"
	RoleHelpdesk Role = "helpdesk"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a role coming from outside the process.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleHelpdesk, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is an account that submits, handles or administers tickets.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Avatar       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the identity the auth layer hands to services.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
func (a Actor) IsHelpdesk() bool { return a.Role == RoleHelpdesk }

// IsStaff reports whether the actor works tickets rather than submits them.
func (a Actor) IsStaff() bool { return a.IsAdmin() || a.IsHelpdesk() }

// UserRef is the public projection of a user joined onto other records.
type UserRef struct {
	ID    string
	Name  string
	Email string
}
