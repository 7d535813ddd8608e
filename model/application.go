package model

import (
	"time"
)

// ApplicationStatus is a state of the application lifecycle
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "PENDING"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusAccepted    ApplicationStatus = "ACCEPTED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusWaitlisted  ApplicationStatus = "WAITLISTED"
	StatusWithdrawn   ApplicationStatus = "WITHDRAWN"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []ApplicationStatus{
	StatusPending,
	StatusUnderReview,
	StatusAccepted,
	StatusRejected,
	StatusWaitlisted,
	StatusWithdrawn,
}

var transitions = map[ApplicationStatus][]ApplicationStatus{
	StatusPending:     {StatusUnderReview, StatusAccepted, StatusRejected, StatusWaitlisted, StatusWithdrawn},
	StatusUnderReview: {StatusAccepted, StatusRejected, StatusWaitlisted, StatusWithdrawn},
	StatusWaitlisted:  {StatusAccepted, StatusRejected, StatusWithdrawn},
}

// Valid reports whether s is a known status
func (s ApplicationStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves s
func (s ApplicationStatus) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Staying in a non-terminal state is allowed so reviewers can revise feedback.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Application links an applicant to a program. InstitutionID is copied from the program.
type Application struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ApplicantID       uint              `gorm:"not null;index" json:"applicant_id"`
	ProgramID         uint              `gorm:"not null;index" json:"program_id"`
	InstitutionID     uint              `gorm:"not null;index" json:"institution_id"`
	Status            ApplicationStatus `gorm:"type:varchar(20);not null;index;default:'PENDING'" json:"status"`
	PersonalStatement string            `gorm:"type:varchar(1000)" json:"personal_statement"`
	Feedback          string            `gorm:"type:varchar(500)" json:"feedback"`
	DocumentPath      string            `gorm:"type:varchar(255)" json:"document_path"` // attachment reference
	SubmittedAt       time.Time         `gorm:"not null" json:"submitted_at"`
	LastUpdatedAt     time.Time         `gorm:"not null" json:"last_updated_at"`

	Applicant   *Applicant   `gorm:"foreignKey:ApplicantID;constraint:OnDelete:CASCADE" json:"-"`
	Program     *Program     `gorm:"foreignKey:ProgramID;constraint:OnDelete:CASCADE" json:"-"`
	Institution *Institution `gorm:"foreignKey:InstitutionID;constraint:OnDelete:CASCADE" json:"-"`
}
