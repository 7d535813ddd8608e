package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationKind identifies the template used for an outbound notification
type NotificationKind string

const (
	NotificationApplicationSubmitted NotificationKind = "application_submitted"
	NotificationStatusChanged        NotificationKind = "status_changed"
	NotificationDigest               NotificationKind = "digest"
)

// NotificationStatus is the outcome of a single dispatch attempt
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationSkipped NotificationStatus = "skipped"
)

// NotificationLog records one dispatch attempt
type NotificationLog struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time          `gorm:"index" json:"created_at"`
	Recipient     string             `gorm:"type:varchar(100);not null;index" json:"recipient"`
	Kind          NotificationKind   `gorm:"type:varchar(30);not null" json:"kind"`
	Subject       string             `gorm:"type:varchar(255)" json:"subject"`
	Status        NotificationStatus `gorm:"type:varchar(20);not null" json:"status"`
	Error         string             `gorm:"type:text" json:"error,omitempty"`
	ApplicationID *uint              `gorm:"index" json:"application_id,omitempty"`
	Metadata      datatypes.JSON     `gorm:"type:jsonb" json:"metadata,omitempty"` // template parameters
}

// NotificationLogResponse represents the API response format for a notification log
type NotificationLogResponse struct {
	ID            uint               `json:"id"`
	Recipient     string             `json:"recipient"`
	Kind          NotificationKind   `json:"kind"`
	Subject       string             `json:"subject"`
	Status        NotificationStatus `json:"status"`
	Error         string             `json:"error,omitempty"`
	ApplicationID *uint              `json:"application_id,omitempty"`
	Metadata      datatypes.JSON     `json:"metadata,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// ToResponse converts a NotificationLog to NotificationLogResponse
func (n *NotificationLog) ToResponse() NotificationLogResponse {
	return NotificationLogResponse{
		ID:            n.ID,
		Recipient:     n.Recipient,
		Kind:          n.Kind,
		Subject:       n.Subject,
		Status:        n.Status,
		Error:         n.Error,
		ApplicationID: n.ApplicationID,
		Metadata:      n.Metadata,
		CreatedAt:     n.CreatedAt,
	}
}
