package model

import (
	"time"
)

// Program represents an academic program offered by an institution (e.g., MSc Data Science)
type Program struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	InstitutionID uint      `gorm:"not null;index" json:"institution_id"`
	Name          string    `gorm:"type:varchar(100);not null" json:"name"`
	Degree        string    `gorm:"type:varchar(50)" json:"degree"`   // e.g., "BSc", "MSc"
	Duration      string    `gorm:"type:varchar(50)" json:"duration"` // e.g., "2 years"
	TuitionFee    float64   `gorm:"not null" json:"tuition_fee"`
	Description   string    `gorm:"type:varchar(500)" json:"description"`
	Requirements  string    `gorm:"type:text" json:"requirements"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Institution *Institution `gorm:"foreignKey:InstitutionID;constraint:OnDelete:CASCADE" json:"-"`
}
