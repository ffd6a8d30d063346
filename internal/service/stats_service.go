package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const overdueStatsCacheKey = "stats:overdue"

// StatsService serves reporting snapshots for admin tooling. The overdue
// snapshot is cached in redis with a short TTL; a cache failure falls through
// to the database and is logged only.
type StatsService struct {
	engine   *sla.Engine
	stats    repository.StatsRepository
	cache    *persistence.Redis
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(engine *sla.Engine, stats repository.StatsRepository, cache *persistence.Redis, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	return &StatsService{
		engine:   engine,
		stats:    stats,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// OverdueStats returns the flagged-and-active snapshot. Read-only and safe to
// call concurrently with a scan/escalation pass.
func (s *StatsService) OverdueStats(ctx context.Context) (sla.OverdueStats, error) {
	if cached, ok := s.cachedOverdue(ctx); ok {
		return cached, nil
	}

	stats, err := s.engine.OverdueStats(ctx)
	if err != nil {
		return sla.OverdueStats{}, apperrors.MapError(err)
	}
	s.storeOverdue(ctx, stats)
	return stats, nil
}

// DashboardMetrics returns ticket counts and resolution averages.
func (s *StatsService) DashboardMetrics(ctx context.Context) (repository.DashboardMetrics, error) {
	metrics, err := s.stats.DashboardMetrics(ctx)
	if err != nil {
		return repository.DashboardMetrics{}, apperrors.MapError(err)
	}
	return metrics, nil
}

func (s *StatsService) cachedOverdue(ctx context.Context) (sla.OverdueStats, bool) {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return sla.OverdueStats{}, false
	}
	raw, err := s.cache.Client.Get(ctx, overdueStatsCacheKey).Bytes()
	if err != nil {
		return sla.OverdueStats{}, false
	}
	var stats sla.OverdueStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return sla.OverdueStats{}, false
	}
	return stats, true
}

func (s *StatsService) storeOverdue(ctx context.Context, stats sla.OverdueStats) {
	if s.cache == nil || s.cache.Client == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Client.Set(ctx, overdueStatsCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("overdue stats cache write failed", zap.Error(err))
	}
}
