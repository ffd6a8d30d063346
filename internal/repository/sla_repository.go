package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// slaStore is the engine-facing view over tickets, history and chat messages.
// It implements sla.Store.
type slaStore struct {
	pool *pgxpool.Pool
}

// NewSLAStore returns a Postgres-backed store for the SLA engine.
func NewSLAStore(pool *pgxpool.Pool) sla.Store {
	return &slaStore{pool: pool}
}

// FindBreached selects tickets past deadline, still active and not yet
// flagged, most urgent and most overdue first. Pure read; the flag keeps
// already-escalated tickets out of every subsequent scan.
func (s *slaStore) FindBreached(ctx context.Context, now time.Time) ([]sla.BreachedTicket, error) {
	const query = `
        SELECT t.id, t.title, t.priority, t.sla_deadline,
               c.first_name || ' ' || c.last_name AS customer_name,
               a.first_name || ' ' || a.last_name AS agent_name
        FROM tickets t
        JOIN users c ON t.customer_id = c.id
        LEFT JOIN users a ON t.assigned_agent_id = a.id
        WHERE t.sla_deadline < $1
          AND t.status NOT IN ('resolved', 'closed')
          AND t.is_overdue = FALSE
        ORDER BY ` + priorityRank + ` DESC, t.sla_deadline ASC`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []sla.BreachedTicket
	for rows.Next() {
		var ticket sla.BreachedTicket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Priority,
			&ticket.Deadline,
			&ticket.CustomerName,
			&ticket.AgentName,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func (s *slaStore) MarkOverdue(ctx context.Context, ticketID string) error {
	const query = `
        UPDATE tickets SET is_overdue = TRUE, updated_at = NOW()
        WHERE id=$1`
	cmd, err := s.pool.Exec(ctx, query, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *slaStore) AppendAudit(ctx context.Context, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, field_name, new_value, changed_by)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return s.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.FieldName,
		entry.NewValue,
		entry.ChangedBy,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (s *slaStore) AppendInternalNote(ctx context.Context, ticketID, senderID, text string) error {
	const query = `
        INSERT INTO chat_messages (ticket_id, sender_id, message, is_internal)
        VALUES ($1,$2,$3,TRUE)`
	_, err := s.pool.Exec(ctx, query, ticketID, senderID, text)
	return err
}

// OverdueStats aggregates over the same status boundary the scanner uses, so
// the flagged-and-active count lines up with what a scan would act on.
func (s *slaStore) OverdueStats(ctx context.Context) (sla.OverdueStats, error) {
	const query = `
        SELECT COUNT(*) AS total_overdue,
               COUNT(*) FILTER (WHERE priority = 'high') AS high_priority_overdue,
               COUNT(*) FILTER (WHERE assigned_agent_id IS NULL) AS unassigned_overdue
        FROM tickets
        WHERE is_overdue = TRUE AND status NOT IN ('resolved', 'closed')`

	var stats sla.OverdueStats
	if err := s.pool.QueryRow(ctx, query).Scan(
		&stats.TotalOverdue,
		&stats.HighPriorityOverdue,
		&stats.UnassignedOverdue,
	); err != nil {
		return sla.OverdueStats{}, err
	}
	return stats, nil
}
