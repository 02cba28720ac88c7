// Package models defines server-side records persisted in the database and
// the projections the rest of the server works with.
package models

import (
	"net/mail"
	"strings"
	"time"
)

// Role is the account type. It gates which endpoints an identity may call.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts the canonical names plus "user", the legacy name for riders.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "", "user", string(RoleRider):
		return RoleRider, true
	case string(RoleDriver):
		return RoleDriver, true
	case string(RoleAdmin):
		return RoleAdmin, true
	}
	return "", false
}

// VehicleInfo is only kept for drivers.
type VehicleInfo struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year,omitempty"`
	Color        string `json:"color,omitempty"`
	LicensePlate string `json:"license_plate"`
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// User is the full account record. PasswordHash is the bcrypt digest and
// never leaves the server.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	IsVerified   bool
	IsActive     bool
	Rating       Rating
	VehicleInfo  *VehicleInfo
	CreatedAt    time.Time
}

// Identity is the minimal projection needed to authorize a request.
type Identity struct {
	ID     string
	Active bool
	Role   Role
}

func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, Active: u.IsActive, Role: u.Role}
}

// NormalizeEmail is the stored form of an email: trimmed and lower case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail accepts a bare address with a dotted domain. Display-name
// forms like "Ann <a@x.com>" are rejected.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}
