package model

import (
	"time"
)

// Role is the fixed account kind
type Role string

const (
	RoleApplicant   Role = "APPLICANT"
	RoleInstitution Role = "INSTITUTION"
	RoleAdmin       Role = "ADMIN"
)

// Valid reports whether r is one of the three known roles
func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleInstitution, RoleAdmin:
		return true
	}
	return false
}

// Account is a login identity. Profiles point back to it through AccountID.
type Account struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"` // Never expose password in JSON
	Role         Role       `gorm:"type:varchar(20);not null;index" json:"role"`
	Active       bool       `gorm:"not null;default:true" json:"active"`
	TokenVersion int        `gorm:"default:0" json:"-"` // Increment to invalidate all account tokens
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
