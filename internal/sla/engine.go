package sla

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EscalationNoteBody is the fixed internal note appended to every escalated
// ticket's thread.
const EscalationNoteBody = "ESCALATION: This ticket has exceeded its SLA deadline and requires immediate attention."

// UnassignedAgentName is reported in escalation notices for tickets without
// an assigned agent.
const UnassignedAgentName = "Unassigned"

// BreachedTicket is the scanner's projection of a ticket past its deadline,
// joined with the people involved so the escalation notice can be built
// without further lookups.
type BreachedTicket struct {
	ID           string
	Title        string
	Priority     domain.TicketPriority
	Deadline     time.Time
	CustomerName string
	AgentName    *string
}

// EscalationNotice is the payload handed to the notification collaborator.
// Delivery is entirely the collaborator's concern.
type EscalationNotice struct {
	TicketID     string                `json:"ticketId"`
	Title        string                `json:"title"`
	Priority     domain.TicketPriority `json:"priority"`
	CustomerName string                `json:"customerName"`
	AgentName    string                `json:"agentName"`
	Deadline     time.Time             `json:"deadline"`
}

// OverdueStats is the reporting snapshot over flagged, still-active tickets.
type OverdueStats struct {
	TotalOverdue        int `json:"totalOverdue"`
	HighPriorityOverdue int `json:"highPriorityOverdue"`
	UnassignedOverdue   int `json:"unassignedOverdue"`
}

// Store is the engine's boundary to ticket persistence. FindBreached must
// select tickets with sla_deadline < now, a non-terminal status and the
// overdue flag unset, ordered by priority descending then deadline ascending.
// OverdueStats must count over the same status boundary so a ticket counted
// by one pass is countable by the other at the same instant.
type Store interface {
	FindBreached(ctx context.Context, now time.Time) ([]BreachedTicket, error)
	MarkOverdue(ctx context.Context, ticketID string) error
	AppendAudit(ctx context.Context, entry *domain.TicketHistory) error
	AppendInternalNote(ctx context.Context, ticketID, senderID, text string) error
	OverdueStats(ctx context.Context) (OverdueStats, error)
}

// Notifier receives escalation notices for stakeholder delivery.
type Notifier interface {
	NotifyEscalation(ctx context.Context, notice EscalationNotice)
}

var priorityWeight = map[domain.TicketPriority]int{
	domain.TicketPriorityLow:    1,
	domain.TicketPriorityMedium: 2,
	domain.TicketPriorityHigh:   3,
}

// SortBreached orders a breached batch for escalation handling: priority
// descending, then deadline ascending. Unknown priorities sort last. Stores
// return rows in this order already; the engine sorts again so handling order
// does not depend on the store.
func SortBreached(tickets []BreachedTicket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		wi, wj := priorityWeight[tickets[i].Priority], priorityWeight[tickets[j].Priority]
		if wi != wj {
			return wi > wj
		}
		return tickets[i].Deadline.Before(tickets[j].Deadline)
	})
}

// Engine drives breach detection and escalation over the ticket store.
//
// The scan-and-escalate cycle is not transactionally isolated from concurrent
// ticket mutations: a ticket resolved between selection and escalation is
// still flagged. That stale escalation is accepted and never rolled back.
type Engine struct {
	store         Store
	notifier      Notifier
	logger        *zap.Logger
	systemActorID string
}

// NewEngine constructs the engine. systemActorID attributes every audit entry
// and internal note the engine produces; it must be distinguishable from real
// user ids downstream.
func NewEngine(store Store, notifier Notifier, logger *zap.Logger, systemActorID string) *Engine {
	return &Engine{
		store:         store,
		notifier:      notifier,
		logger:        logger,
		systemActorID: systemActorID,
	}
}

// RunCycle executes one scan-and-escalate pass at the given instant and
// returns the number of tickets escalated. A scan failure aborts the cycle;
// per-ticket escalation failures are logged and do not stop the rest of the
// batch.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (int, error) {
	breached, err := e.store.FindBreached(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("scan for breaches: %w", err)
	}
	if len(breached) == 0 {
		return 0, nil
	}
	SortBreached(breached)

	e.logger.Warn("found overdue tickets", zap.Int("count", len(breached)))

	escalated := 0
	for _, ticket := range breached {
		if err := e.escalate(ctx, ticket); err != nil {
			e.logger.Error("escalation failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		escalated++
	}
	return escalated, nil
}

// OverdueStats returns the current snapshot of flagged, still-active tickets.
func (e *Engine) OverdueStats(ctx context.Context) (OverdueStats, error) {
	return e.store.OverdueStats(ctx)
}

// escalate applies the escalation side effects in order: flag, audit entry,
// internal note, notification. If the flag write fails the ticket stays
// unflagged and is retried on the next cycle. Failures after the flag has
// committed are logged and not retried: the scanner keys its exclusion on the
// flag alone, so such a ticket can end up flagged without its note. Known
// gap, kept as documented behavior.
func (e *Engine) escalate(ctx context.Context, ticket BreachedTicket) error {
	if err := e.store.MarkOverdue(ctx, ticket.ID); err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}

	audit := &domain.TicketHistory{
		TicketID:  ticket.ID,
		FieldName: "escalated",
		NewValue:  "overdue",
		ChangedBy: e.systemActorID,
	}
	if err := e.store.AppendAudit(ctx, audit); err != nil {
		e.logger.Error("escalation audit append failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}

	if err := e.store.AppendInternalNote(ctx, ticket.ID, e.systemActorID, EscalationNoteBody); err != nil {
		e.logger.Error("escalation note append failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}

	if e.notifier != nil {
		e.notifier.NotifyEscalation(ctx, noticeFor(ticket))
	}
	return nil
}

func noticeFor(ticket BreachedTicket) EscalationNotice {
	agent := UnassignedAgentName
	if ticket.AgentName != nil && *ticket.AgentName != "" {
		agent = *ticket.AgentName
	}
	return EscalationNotice{
		TicketID:     ticket.ID,
		Title:        ticket.Title,
		Priority:     ticket.Priority,
		CustomerName: ticket.CustomerName,
		AgentName:    agent,
		Deadline:     ticket.Deadline,
	}
}
