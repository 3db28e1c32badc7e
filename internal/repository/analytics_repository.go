package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quadriparlanti/qp-api/internal/models"
)

// AnalyticsRepository writes append-only event rows and serves the
// aggregate queries behind the admin dashboard.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// InsertScan appends a QR scan event.
func (r *AnalyticsRepository) InsertScan(ctx context.Context, scan *models.QRScan) error {
	if scan.ID == "" {
		scan.ID = uuid.NewString()
	}
	if scan.ScannedAt.IsZero() {
		scan.ScannedAt = time.Now().UTC()
	}
	const query = `INSERT INTO qr_scans (id, qr_code_id, ip_hash, device_type, referrer, scanned_at)
	VALUES (:id, :qr_code_id, :ip_hash, :device_type, :referrer, :scanned_at)`
	if _, err := r.db.NamedExecContext(ctx, query, scan); err != nil {
		return fmt.Errorf("insert qr scan: %w", err)
	}
	return nil
}

// InsertView appends a work view event.
func (r *AnalyticsRepository) InsertView(ctx context.Context, view *models.WorkView) error {
	if view.ID == "" {
		view.ID = uuid.NewString()
	}
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_views (id, work_id, ip_hash, device_type, referrer, viewed_at)
	VALUES (:id, :work_id, :ip_hash, :device_type, :referrer, :viewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, view); err != nil {
		return fmt.Errorf("insert work view: %w", err)
	}
	return nil
}

// TotalScans counts scan events in the filter window.
func (r *AnalyticsRepository) TotalScans(ctx context.Context, filter models.AnalyticsFilter) (int, error) {
	where, args := scanWindow("scanned_at", filter)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM qr_scans"+where, args...); err != nil {
		return 0, fmt.Errorf("count qr scans: %w", err)
	}
	return total, nil
}

// TotalViews counts view events in the filter window.
func (r *AnalyticsRepository) TotalViews(ctx context.Context, filter models.AnalyticsFilter) (int, error) {
	where, args := scanWindow("viewed_at", filter)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM work_views"+where, args...); err != nil {
		return 0, fmt.Errorf("count work views: %w", err)
	}
	return total, nil
}

// ScansPerDay aggregates scan events by calendar day.
func (r *AnalyticsRepository) ScansPerDay(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error) {
	where, args := scanWindow("scanned_at", filter)
	query := fmt.Sprintf(`SELECT DATE_TRUNC('day', scanned_at) AS day, COUNT(*) AS count
FROM qr_scans%s GROUP BY day ORDER BY day`, where)
	var rows []models.DailyCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scans per day: %w", err)
	}
	return rows, nil
}

// ViewsPerDay aggregates view events by calendar day.
func (r *AnalyticsRepository) ViewsPerDay(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error) {
	where, args := scanWindow("viewed_at", filter)
	query := fmt.Sprintf(`SELECT DATE_TRUNC('day', viewed_at) AS day, COUNT(*) AS count
FROM work_views%s GROUP BY day ORDER BY day`, where)
	var rows []models.DailyCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("views per day: %w", err)
	}
	return rows, nil
}

// ScanDevices aggregates scan events per device classification.
func (r *AnalyticsRepository) ScanDevices(ctx context.Context, filter models.AnalyticsFilter) ([]models.DeviceCount, error) {
	where, args := scanWindow("scanned_at", filter)
	query := fmt.Sprintf(`SELECT device_type, COUNT(*) AS count FROM qr_scans%s GROUP BY device_type ORDER BY count DESC`, where)
	var rows []models.DeviceCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scan devices: %w", err)
	}
	return rows, nil
}

// ViewDevices aggregates view events per device classification.
func (r *AnalyticsRepository) ViewDevices(ctx context.Context, filter models.AnalyticsFilter) ([]models.DeviceCount, error) {
	where, args := scanWindow("viewed_at", filter)
	query := fmt.Sprintf(`SELECT device_type, COUNT(*) AS count FROM work_views%s GROUP BY device_type ORDER BY count DESC`, where)
	var rows []models.DeviceCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("view devices: %w", err)
	}
	return rows, nil
}

// TopWorks ranks published works by views in the filter window.
func (r *AnalyticsRepository) TopWorks(ctx context.Context, filter models.AnalyticsFilter, limit int) ([]models.WorkViewCount, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	where, args := scanWindow("v.viewed_at", filter)
	query := fmt.Sprintf(`SELECT v.work_id, w.title_it, COUNT(*) AS count
FROM work_views v JOIN works w ON w.id = v.work_id%s
GROUP BY v.work_id, w.title_it ORDER BY count DESC LIMIT %d`, where, limit)
	var rows []models.WorkViewCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("top works: %w", err)
	}
	return rows, nil
}

func scanWindow(column string, filter models.AnalyticsFilter) (string, []interface{}) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
