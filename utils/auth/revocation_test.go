package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevocationStore(t *testing.T) {
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	ctx := context.Background()
	store := auth.NewRevocationStore(db)

	revoked, err := store.IsTokenRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeToken(ctx, "jti-live", 1, time.Now().Add(time.Hour), model.RevokeReasonLogout))
	// Revoking again is harmless
	require.NoError(t, store.RevokeToken(ctx, "jti-live", 1, time.Now().Add(time.Hour), model.RevokeReasonLogout))
	require.NoError(t, store.RevokeToken(ctx, "jti-expired", 1, time.Now().Add(-time.Hour), model.RevokeReasonLogout))

	revoked, err = store.IsTokenRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, revoked)

	// An expired token is rejected by signature validation already
	revoked, err = store.IsTokenRevoked(ctx, "jti-expired")
	require.NoError(t, err)
	assert.False(t, revoked)

	removed, err := store.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var remaining int64
	require.NoError(t, db.Model(&model.RevokedToken{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
