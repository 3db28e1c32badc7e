package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quadriparlanti/qp-api/internal/models"
	appErrors "github.com/quadriparlanti/qp-api/pkg/errors"
	"github.com/quadriparlanti/qp-api/pkg/jobs"
)

const (
	jobTypeQRScan   = "qr_scan"
	jobTypeWorkView = "work_view"
)

type analyticsStore interface {
	InsertScan(ctx context.Context, scan *models.QRScan) error
	InsertView(ctx context.Context, view *models.WorkView) error
	TotalScans(ctx context.Context, filter models.AnalyticsFilter) (int, error)
	TotalViews(ctx context.Context, filter models.AnalyticsFilter) (int, error)
	ScansPerDay(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error)
	ViewsPerDay(ctx context.Context, filter models.AnalyticsFilter) ([]models.DailyCount, error)
	ScanDevices(ctx context.Context, filter models.AnalyticsFilter) ([]models.DeviceCount, error)
	ViewDevices(ctx context.Context, filter models.AnalyticsFilter) ([]models.DeviceCount, error)
	TopWorks(ctx context.Context, filter models.AnalyticsFilter, limit int) ([]models.WorkViewCount, error)
}

type scanCounter interface {
	IncrementScanCount(ctx context.Context, id string) error
}

type viewCounter interface {
	IncrementViewCount(ctx context.Context, workID string) error
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ViewEvent carries raw metadata of a public work view before
// anonymisation.
type ViewEvent struct {
	WorkID     string
	IP         string
	UserAgent  string
	Referrer   string
	OccurredAt time.Time
}

// AnalyticsConfig tunes the event pipeline.
type AnalyticsConfig struct {
	Enabled           bool
	IPHashSalt        string
	WorkerConcurrency int
	QueueBuffer       int
	CacheTTL          time.Duration
}

// AnalyticsService is the privacy-preserving event pipeline. Scans and
// views are enqueued without blocking the caller, anonymised by the
// workers and stored append-only. Full buffers drop events; delivery is
// at-most-once and that is the contract.
type AnalyticsService struct {
	repo   analyticsStore
	scans  scanCounter
	views  viewCounter
	cache  analyticsCache
	queue  *jobs.Queue
	logger *zap.Logger
	config AnalyticsConfig
}

// NewAnalyticsService constructs the service and its worker queue.
func NewAnalyticsService(repo analyticsStore, scans scanCounter, views viewCounter, cache analyticsCache, logger *zap.Logger, config AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.WorkerConcurrency <= 0 {
		config.WorkerConcurrency = 2
	}
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = 256
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}

	svc := &AnalyticsService{
		repo:   repo,
		scans:  scans,
		views:  views,
		cache:  cache,
		logger: logger,
		config: config,
	}
	svc.queue = jobs.NewQueue("analytics", svc.handleJob, jobs.QueueConfig{
		Workers:    config.WorkerConcurrency,
		BufferSize: config.QueueBuffer,
		Logger:     logger,
	})
	return svc
}

// Start begins consuming queued events.
func (s *AnalyticsService) Start(ctx context.Context) {
	if s.config.Enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains the workers.
func (s *AnalyticsService) Stop() {
	if s.config.Enabled {
		s.queue.Stop()
	}
}

// RecordScan enqueues a QR scan without blocking. Returns false when
// analytics is disabled or the buffer is full.
func (s *AnalyticsService) RecordScan(event ScanEvent) bool {
	if !s.config.Enabled {
		return false
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return s.queue.TryEnqueue(jobs.Job{Type: jobTypeQRScan, Payload: event})
}

// RecordView enqueues a public work view without blocking.
func (s *AnalyticsService) RecordView(event ViewEvent) bool {
	if !s.config.Enabled {
		return false
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return s.queue.TryEnqueue(jobs.Job{Type: jobTypeWorkView, Payload: event})
}

// Summary builds the admin dashboard aggregate, cached in Redis.
func (s *AnalyticsService) Summary(ctx context.Context, filter models.AnalyticsFilter, actor *models.JWTClaims) (*models.AnalyticsSummary, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}

	cacheKey := summaryCacheKey(filter)
	if s.cache != nil {
		var cached models.AnalyticsSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	summary := &models.AnalyticsSummary{GeneratedAt: time.Now().UTC()}
	var err error
	if summary.TotalScans, err = s.repo.TotalScans(ctx, filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count scans")
	}
	if summary.TotalViews, err = s.repo.TotalViews(ctx, filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count views")
	}
	if summary.ScansPerDay, err = s.repo.ScansPerDay(ctx, filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate scans per day")
	}
	if summary.ViewsPerDay, err = s.repo.ViewsPerDay(ctx, filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate views per day")
	}
	if summary.ScanDevices, err = s.repo.ScanDevices(ctx, filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate scan devices")
	}
	if summary.ViewDevices, err = s.repo.ViewDevices(ctx, filter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate view devices")
	}
	if summary.TopWorks, err = s.repo.TopWorks(ctx, filter, 10); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank works")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache analytics summary", zap.Error(err))
		}
	}
	return summary, nil
}

// ScansPerDay exposes the daily scan series.
func (s *AnalyticsService) ScansPerDay(ctx context.Context, filter models.AnalyticsFilter, actor *models.JWTClaims) ([]models.DailyCount, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	counts, err := s.repo.ScansPerDay(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate scans per day")
	}
	return counts, nil
}

// ViewsPerDay exposes the daily view series.
func (s *AnalyticsService) ViewsPerDay(ctx context.Context, filter models.AnalyticsFilter, actor *models.JWTClaims) ([]models.DailyCount, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	counts, err := s.repo.ViewsPerDay(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate views per day")
	}
	return counts, nil
}

func (s *AnalyticsService) handleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeQRScan:
		event, ok := job.Payload.(ScanEvent)
		if !ok {
			s.logger.Warn("discarding malformed scan job")
			return nil
		}
		return s.storeScan(ctx, event)
	case jobTypeWorkView:
		event, ok := job.Payload.(ViewEvent)
		if !ok {
			s.logger.Warn("discarding malformed view job")
			return nil
		}
		return s.storeView(ctx, event)
	default:
		s.logger.Warn("unknown analytics job type", zap.String("type", job.Type))
		return nil
	}
}

func (s *AnalyticsService) storeScan(ctx context.Context, event ScanEvent) error {
	scan := &models.QRScan{
		QRCodeID:   event.QRCodeID,
		IPHash:     s.hashIP(event.IP, event.OccurredAt),
		DeviceType: ClassifyDevice(event.UserAgent),
		Referrer:   optionalComments(event.Referrer),
		ScannedAt:  event.OccurredAt,
	}
	if err := s.repo.InsertScan(ctx, scan); err != nil {
		return fmt.Errorf("store scan: %w", err)
	}
	if s.scans != nil {
		if err := s.scans.IncrementScanCount(ctx, event.QRCodeID); err != nil {
			s.logger.Warn("failed to bump scan counter", zap.Error(err))
		}
	}
	return nil
}

func (s *AnalyticsService) storeView(ctx context.Context, event ViewEvent) error {
	view := &models.WorkView{
		WorkID:     event.WorkID,
		IPHash:     s.hashIP(event.IP, event.OccurredAt),
		DeviceType: ClassifyDevice(event.UserAgent),
		Referrer:   optionalComments(event.Referrer),
		ViewedAt:   event.OccurredAt,
	}
	if err := s.repo.InsertView(ctx, view); err != nil {
		return fmt.Errorf("store view: %w", err)
	}
	if s.views != nil {
		if err := s.views.IncrementViewCount(ctx, event.WorkID); err != nil {
			s.logger.Warn("failed to bump view counter", zap.Error(err))
		}
	}
	return nil
}

// hashIP anonymises the client address. The salt rotates daily so the
// same visitor cannot be correlated across days.
func (s *AnalyticsService) hashIP(ip string, ts time.Time) string {
	day := ts.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(s.config.IPHashSalt + day + ip))
	return hex.EncodeToString(sum[:])
}

// ClassifyDevice maps a User-Agent string onto the coarse device
// buckets stored with events. No full UA is ever persisted.
func ClassifyDevice(userAgent string) models.DeviceType {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return models.DeviceDesktop
	case containsAny(ua, "bot", "crawler", "spider", "curl", "wget", "headless"):
		return models.DeviceBot
	case containsAny(ua, "ipad", "tablet", "kindle", "silk"):
		return models.DeviceTablet
	case containsAny(ua, "mobi", "iphone", "android"):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func summaryCacheKey(filter models.AnalyticsFilter) string {
	from, to := "", ""
	if filter.DateFrom != nil {
		from = filter.DateFrom.Format("2006-01-02")
	}
	if filter.DateTo != nil {
		to = filter.DateTo.Format("2006-01-02")
	}
	return fmt.Sprintf("analytics:summary:%s:%s:%s:%s", from, to, filter.ThemeID, filter.WorkID)
}
