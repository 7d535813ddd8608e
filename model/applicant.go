package model

import (
	"time"
)

// Applicant is a student profile, optionally owned by an APPLICANT account
type Applicant struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	AccountID           *uint      `gorm:"uniqueIndex" json:"account_id,omitempty"`
	FirstName           string     `gorm:"type:varchar(50);not null" json:"first_name"`
	LastName            string     `gorm:"type:varchar(50);not null" json:"last_name"`
	Email               string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Bio                 string     `gorm:"type:varchar(500)" json:"bio"`
	ProfileImage        string     `gorm:"type:varchar(255)" json:"profile_image"` // attachment reference
	GPA                 *float64   `json:"gpa,omitempty"`
	DateOfBirth         *time.Time `json:"date_of_birth,omitempty"`
	Location            string     `gorm:"type:varchar(100)" json:"location"`
	EducationBackground string     `gorm:"type:text" json:"education_background"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Account *Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// FullName joins the first and last name
func (a *Applicant) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}
