package model

import "time"

// Revocation reasons
const (
	RevokeReasonLogout = "logout"
	RevokeReasonAdmin  = "admin_revoke"
)

// RevokedToken is a JWT that was explicitly invalidated before it expired.
// Rows can be dropped once ExpiresAt has passed.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JTI       string    `gorm:"column:jti;uniqueIndex;not null;type:varchar(64)" json:"jti"`
	AccountID uint      `gorm:"index" json:"account_id"`
	Reason    string    `gorm:"type:varchar(50)" json:"reason"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for RevokedToken
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
