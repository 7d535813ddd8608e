package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/univast-api/model"
	"github.com/sahilchouksey/univast-api/services"
)

// cronLogRetention is how long CronJobLog rows are kept
const cronLogRetention = 90 * 24 * time.Hour

// SendDailyDigest mails the per-status application summary to every active admin
func (m *CronManager) SendDailyDigest(ctx context.Context) (string, map[string]interface{}, error) {
	stats, err := m.svc.Applications.Stats(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to aggregate applications: %w", err)
	}

	params := services.NotificationParams{
		Period:      "Daily",
		Total:       stats.Total,
		StatusCount: statusCounts(stats),
	}
	sent, err := m.notifyAdmins(ctx, params)
	if err != nil {
		return "", nil, err
	}

	pending := stats.ByStatus[model.StatusPending] + stats.ByStatus[model.StatusUnderReview]
	return fmt.Sprintf("Sent digest to %d admins, %d applications awaiting review", sent, pending),
		map[string]interface{}{"recipients": sent, "total": stats.Total, "awaiting_review": pending}, nil
}

// SendWeeklyReport mails the number of applications received in the last seven days
// together with the current per-status breakdown
func (m *CronManager) SendWeeklyReport(ctx context.Context) (string, map[string]interface{}, error) {
	since := m.now().Add(-7 * 24 * time.Hour)
	received, err := m.svc.Applications.CountSubmittedSince(ctx, since)
	if err != nil {
		return "", nil, fmt.Errorf("failed to count recent applications: %w", err)
	}

	stats, err := m.svc.Applications.Stats(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to aggregate applications: %w", err)
	}

	sent, err := m.notifyAdmins(ctx, services.NotificationParams{
		Period:      "Weekly",
		Total:       received,
		StatusCount: statusCounts(stats),
	})
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("Sent weekly report to %d admins, %d applications received", sent, received),
		map[string]interface{}{"recipients": sent, "received": received}, nil
}

func (m *CronManager) notifyAdmins(ctx context.Context, params services.NotificationParams) (int, error) {
	admins, err := m.svc.Accounts.ListByRole(ctx, model.RoleAdmin)
	if err != nil {
		return 0, fmt.Errorf("failed to list admins: %w", err)
	}

	sent := 0
	for _, admin := range admins {
		if !admin.Active {
			continue
		}
		m.svc.Dispatcher.Notify(ctx, admin.Email, model.NotificationDigest, params)
		sent++
	}
	return sent, nil
}

func statusCounts(stats *services.ApplicationStats) map[string]int64 {
	counts := make(map[string]int64, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		counts[string(status)] = n
	}
	return counts
}

// ReconcileCounters recomputes every institution's program and application counters
func (m *CronManager) ReconcileCounters(ctx context.Context) (string, map[string]interface{}, error) {
	drifted, err := m.svc.Institutions.ReconcileCounters(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to reconcile counters: %w", err)
	}
	return fmt.Sprintf("Corrected counters for %d institutions", drifted),
		map[string]interface{}{"drifted": drifted}, nil
}

// CleanupOldData removes expired notification logs, token revocations and cron job logs
func (m *CronManager) CleanupOldData(ctx context.Context) (string, map[string]interface{}, error) {
	var notifications int64
	if m.svc.Notifications != nil {
		n, err := m.svc.Notifications.CleanupOldLogs(ctx, m.opts.NotificationTTL)
		if err != nil {
			return "", nil, err
		}
		notifications = n
	}

	var tokens int64
	if m.svc.Revocations != nil {
		n, err := m.svc.Revocations.CleanupExpiredTokens(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("failed to clean revoked tokens: %w", err)
		}
		tokens = n
	}

	cutoff := m.now().Add(-cronLogRetention)
	result := m.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		return "", nil, fmt.Errorf("failed to clean cron logs: %w", result.Error)
	}

	return fmt.Sprintf("Cleaned up %d notification logs, %d revoked tokens and %d cron logs", notifications, tokens, result.RowsAffected),
		map[string]interface{}{"notification_logs": notifications, "revoked_tokens": tokens, "cron_logs": result.RowsAffected}, nil
}
