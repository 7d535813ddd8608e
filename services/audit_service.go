package services

import (
	"context"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditFilter narrows ListLogs. Zero values match everything.
type AuditFilter struct {
	AdminID  uint
	Action   string
	Resource string
}

// AuditService stores the admin audit trail
type AuditService struct {
	db  *gorm.DB
	log logrus.FieldLogger
	now Clock
}

// NewAuditService creates a new audit service
func NewAuditService(db *gorm.DB, log logrus.FieldLogger) *AuditService {
	return &AuditService{
		db:  db,
		log: log.WithField("service", "audit"),
		now: SystemClock,
	}
}

// Record appends entry to the trail
func (s *AuditService) Record(ctx context.Context, entry *model.AdminAuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storageError("record audit log", err)
	}
	return nil
}

// ListLogs returns matching entries, newest first, with the total match count
func (s *AuditService) ListLogs(ctx context.Context, filter AuditFilter, limit, offset int) ([]model.AdminAuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.AdminAuditLog{})
	if filter.AdminID != 0 {
		query = query.Where("admin_id = ?", filter.AdminID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Resource != "" {
		query = query.Where("resource = ?", filter.Resource)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("count audit logs", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var logs []model.AdminAuditLog
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, storageError("list audit logs", err)
	}
	return logs, total, nil
}

// GetLog returns a single audit entry
func (s *AuditService) GetLog(ctx context.Context, id uint) (*model.AdminAuditLog, error) {
	var entry model.AdminAuditLog
	if err := s.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, lookupError("audit log", id, err)
	}
	return &entry, nil
}
