package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const ticketColumns = `id, external_key, customer_id, assigned_agent_id, title, description, category,
               status, priority, sla_deadline, is_overdue, resolved_at, created_at, updated_at`

// priorityRank orders the three priorities for queue sorting; highest first.
const priorityRank = `CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error)
	ListByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error)
	ListUnassigned(ctx context.Context) ([]domain.Ticket, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, resolvedAt *time.Time) error
	Assign(ctx context.Context, id, agentID string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, customer_id, title, description, category, status, priority, sla_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.CustomerID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Priority,
		ticket.SLADeadline,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(ticketFields(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
              WHERE customer_id=$1 ORDER BY created_at DESC`
	return r.list(ctx, query, customerID)
}

func (r *ticketRepository) ListByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
              WHERE assigned_agent_id=$1 AND status <> 'closed'
              ORDER BY ` + priorityRank + ` DESC, created_at ASC`
	return r.list(ctx, query, agentID)
}

func (r *ticketRepository) ListUnassigned(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
              WHERE assigned_agent_id IS NULL AND status <> 'closed'
              ORDER BY ` + priorityRank + ` DESC, created_at ASC`
	return r.list(ctx, query)
}

func (r *ticketRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets
              ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, query, limit, offset)
}

// UpdateStatus stamps resolved_at when the ticket moves to resolved and
// clears it otherwise; the overdue flag is deliberately left untouched.
func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, resolvedAt *time.Time) error {
	const query = `
        UPDATE tickets SET status=$1, resolved_at=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, status, resolvedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Assign(ctx context.Context, id, agentID string) error {
	const query = `
        UPDATE tickets SET assigned_agent_id=$1, status='in_progress', updated_at=NOW()
        WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, agentID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketFields(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func ticketFields(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.ExternalKey,
		&t.CustomerID,
		&t.AssignedAgentID,
		&t.Title,
		&t.Description,
		&t.Category,
		&t.Status,
		&t.Priority,
		&t.SLADeadline,
		&t.IsOverdue,
		&t.ResolvedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}
