package models

import "time"

// DeviceType is the coarse device classification logged with events.
type DeviceType string

const (
	DeviceMobile  DeviceType = "MOBILE"
	DeviceTablet  DeviceType = "TABLET"
	DeviceDesktop DeviceType = "DESKTOP"
	DeviceBot     DeviceType = "BOT"
)

// QRScan is an append-only scan event. The IP is stored only as a
// daily-rotating salted hash; rows are never updated.
type QRScan struct {
	ID         string     `db:"id" json:"id"`
	QRCodeID   string     `db:"qr_code_id" json:"qr_code_id"`
	IPHash     string     `db:"ip_hash" json:"ip_hash"`
	DeviceType DeviceType `db:"device_type" json:"device_type"`
	Referrer   *string    `db:"referrer" json:"referrer,omitempty"`
	ScannedAt  time.Time  `db:"scanned_at" json:"scanned_at"`
}

// WorkView is an append-only view event for a published work.
type WorkView struct {
	ID         string     `db:"id" json:"id"`
	WorkID     string     `db:"work_id" json:"work_id"`
	IPHash     string     `db:"ip_hash" json:"ip_hash"`
	DeviceType DeviceType `db:"device_type" json:"device_type"`
	Referrer   *string    `db:"referrer" json:"referrer,omitempty"`
	ViewedAt   time.Time  `db:"viewed_at" json:"viewed_at"`
}

// AnalyticsFilter scopes summary queries.
type AnalyticsFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	ThemeID  string
	WorkID   string
}

// DailyCount aggregates events per day.
type DailyCount struct {
	Day   time.Time `db:"day" json:"day"`
	Count int       `db:"count" json:"count"`
}

// DeviceCount aggregates events per device classification.
type DeviceCount struct {
	DeviceType DeviceType `db:"device_type" json:"device_type"`
	Count      int        `db:"count" json:"count"`
}

// WorkViewCount ranks works by view volume.
type WorkViewCount struct {
	WorkID  string `db:"work_id" json:"work_id"`
	TitleIT string `db:"title_it" json:"title_it"`
	Count   int    `db:"count" json:"count"`
}

// SystemMetrics is a lightweight runtime snapshot exposed alongside
// the Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// AnalyticsSummary is the admin dashboard aggregate.
type AnalyticsSummary struct {
	TotalScans  int             `json:"total_scans"`
	TotalViews  int             `json:"total_views"`
	ScansPerDay []DailyCount    `json:"scans_per_day"`
	ViewsPerDay []DailyCount    `json:"views_per_day"`
	ScanDevices []DeviceCount   `json:"scan_devices"`
	ViewDevices []DeviceCount   `json:"view_devices"`
	TopWorks    []WorkViewCount `json:"top_works"`
	GeneratedAt time.Time       `json:"generated_at"`
}
