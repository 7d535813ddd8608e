package model

import (
	"time"
)

// Institution is a university profile, optionally owned by an INSTITUTION account
type Institution struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AccountID      *uint     `gorm:"uniqueIndex" json:"account_id,omitempty"`
	Name           string    `gorm:"type:varchar(100);not null;index" json:"name"`
	Location       string    `gorm:"type:varchar(100);not null" json:"location"`
	Description    string    `gorm:"type:varchar(1000)" json:"description"`
	AcceptanceRate float64   `gorm:"default:0" json:"acceptance_rate"` // percent, 0-100
	Logo           string    `gorm:"type:varchar(255)" json:"logo"`     // attachment reference
	Website        string    `gorm:"type:varchar(255)" json:"website"`
	PhoneNumber    string    `gorm:"type:varchar(30)" json:"phone_number"`
	FoundedYear    *int      `json:"founded_year,omitempty"`
	Accreditation  string    `gorm:"type:varchar(255)" json:"accreditation"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Derived from programs and applications, recomputed on every mutation
	ProgramCount     int `gorm:"default:0" json:"program_count"`
	ApplicationCount int `gorm:"default:0" json:"application_count"`

	Account *Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// ClampAcceptanceRate bounds a rate to [0, 100]
func ClampAcceptanceRate(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 100:
		return 100
	}
	return rate
}
