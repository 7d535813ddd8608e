package services

import (
	"context"
	"testing"
	"time"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_RecordAndFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	audit := NewAuditService(f.db, logger.Discard())
	audit.now = f.clock.Now

	entries := []model.AdminAuditLog{
		{AdminID: 1, Action: "account_delete", Resource: "accounts", ResourceID: 7, StatusCode: 204},
		{AdminID: 1, Action: "institution_create", Resource: "institutions", StatusCode: 201},
		{AdminID: 2, Action: "account_delete", Resource: "accounts", ResourceID: 8, StatusCode: 204},
	}
	for i := range entries {
		f.clock.Set(f.clock.Now().Add(time.Minute))
		require.NoError(t, audit.Record(ctx, &entries[i]))
	}

	all, total, err := audit.ListLogs(ctx, AuditFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, uint(8), all[0].ResourceID, "newest first")

	deletes, total, err := audit.ListLogs(ctx, AuditFilter{Action: "account_delete"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, deletes, 2)

	byAdmin, total, err := audit.ListLogs(ctx, AuditFilter{AdminID: 1, Resource: "accounts"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, byAdmin, 1)
	assert.Equal(t, uint(7), byAdmin[0].ResourceID)

	page, total, err := audit.ListLogs(ctx, AuditFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)

	got, err := audit.GetLog(ctx, entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "institution_create", got.Action)

	_, err = audit.GetLog(ctx, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
