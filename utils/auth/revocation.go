package auth

import (
	"context"
	"time"

	"github.com/sahilchouksey/univast-api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RevocationStore keeps the list of revoked token IDs
type RevocationStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRevocationStore creates a new revocation store
func NewRevocationStore(db *gorm.DB) *RevocationStore {
	return &RevocationStore{db: db, now: time.Now}
}

// RevokeToken records jti as revoked until expiresAt. Revoking twice is a no-op.
func (s *RevocationStore) RevokeToken(ctx context.Context, jti string, accountID uint, expiresAt time.Time, reason string) error {
	entry := model.RevokedToken{
		JTI:       jti,
		AccountID: accountID,
		Reason:    reason,
		ExpiresAt: expiresAt.UTC(),
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&entry).
		Error
}

// IsTokenRevoked checks if a token is in the revocation list
func (s *RevocationStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.RevokedToken{}).
		Where("jti = ? AND expires_at > ?", jti, s.now().UTC()).
		Count(&count).
		Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// CleanupExpiredTokens removes entries whose token has expired anyway
func (s *RevocationStore) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now().UTC()).
		Delete(&model.RevokedToken{})
	return result.RowsAffected, result.Error
}
