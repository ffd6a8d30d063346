package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardMetrics aggregates ticket counts for the admin dashboard.
type DashboardMetrics struct {
	TotalTickets       int     `json:"total_tickets"`
	OpenTickets        int     `json:"open_tickets"`
	ResolvedTickets    int     `json:"resolved_tickets"`
	ClosedTickets      int     `json:"closed_tickets"`
	SLABreaches        int     `json:"sla_breaches"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
}

// StatsRepository serves reporting aggregates.
type StatsRepository interface {
	DashboardMetrics(ctx context.Context) (DashboardMetrics, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository builds repository.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) DashboardMetrics(ctx context.Context) (DashboardMetrics, error) {
	const countsQuery = `
        SELECT COUNT(*) AS total_tickets,
               COUNT(*) FILTER (WHERE status IN ('open', 'in_progress', 'on_hold')) AS open_tickets,
               COUNT(*) FILTER (WHERE status = 'resolved') AS resolved_tickets,
               COUNT(*) FILTER (WHERE status = 'closed') AS closed_tickets,
               COUNT(*) FILTER (WHERE sla_deadline < NOW() AND status NOT IN ('resolved', 'closed')) AS sla_breaches
        FROM tickets`

	var metrics DashboardMetrics
	if err := r.pool.QueryRow(ctx, countsQuery).Scan(
		&metrics.TotalTickets,
		&metrics.OpenTickets,
		&metrics.ResolvedTickets,
		&metrics.ClosedTickets,
		&metrics.SLABreaches,
	); err != nil {
		return DashboardMetrics{}, err
	}

	const avgQuery = `
        SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600), 0)
        FROM tickets WHERE resolved_at IS NOT NULL`
	if err := r.pool.QueryRow(ctx, avgQuery).Scan(&metrics.AvgResolutionHours); err != nil {
		return DashboardMetrics{}, err
	}
	return metrics, nil
}
