package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.ChatMessageRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	policy     sla.Policy
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.ChatMessageRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Policy      sla.Policy
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket creates a ticket for a customer. The SLA deadline is computed
// exactly once here and never recomputed, even if priority were to change
// later.
func (s *TicketService) CreateTicket(ctx context.Context, customerID string, input TicketCreateInput) (*domain.Ticket, error) {
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	now := time.Now()
	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		CustomerID:  customerID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		SLADeadline: s.policy.ComputeDeadline(priority, now),
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  customerID,
		Payload: events.TicketCreatedPayload{
			Priority:    ticket.Priority,
			Title:       ticket.Title,
			Category:    ticket.Category,
			SLADeadline: ticket.SLADeadline,
		},
	})
	return ticket, nil
}

// ListCustomerTickets returns the customer's tickets, newest first.
func (s *TicketService) ListCustomerTickets(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAgentQueue returns open work assigned to the agent, most urgent first.
func (s *TicketService) ListAgentQueue(ctx context.Context, agentID string) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListUnassigned returns tickets waiting for an agent.
func (s *TicketService) ListUnassigned(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListUnassigned(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAll returns every ticket for admin views.
func (s *TicketService) ListAll(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicketWithThread fetches a ticket and its message thread for the caller.
// Customers see only their own tickets and never internal notes.
func (s *TicketService) GetTicketWithThread(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, []domain.ChatMessage, error) {
	ticket, err := s.getAccessible(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID, actor.Role.IsStaff())
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// AddMessage appends a message to a ticket's thread. Only staff may post
// internal notes.
func (s *TicketService) AddMessage(ctx context.Context, actor *domain.User, ticketID, body string, isInternal bool) (*domain.ChatMessage, error) {
	if isInternal && !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("internal notes are staff only")
	}
	ticket, err := s.getAccessible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		TicketID:   ticket.ID,
		SenderID:   actor.ID,
		Message:    strings.TrimSpace(body),
		IsInternal: isInternal,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			IsInternal:  msg.IsInternal,
			BodyPreview: stringPreview(msg.Message, 120),
		},
	})
	return msg, nil
}

// UpdateStatus moves a ticket through its lifecycle. resolved_at is stamped
// on transition to resolved and cleared when the ticket leaves it. The
// overdue flag is never touched here; it stays as history.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   newStatus,
		})
	}

	oldStatus := ticket.Status
	var resolvedAt *time.Time
	if newStatus == domain.TicketStatusResolved {
		now := time.Now()
		resolvedAt = &now
	}
	if err := s.tickets.UpdateStatus(ctx, ticket.ID, newStatus, resolvedAt); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Status = newStatus
	ticket.ResolvedAt = resolvedAt

	s.recordChange(ctx, ticket.ID, "status", string(newStatus), actor.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

// CloseTicketAsCustomer lets the requester close their own resolved ticket.
func (s *TicketService) CloseTicketAsCustomer(ctx context.Context, customerID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.CustomerID != customerID {
		return nil, apperrors.NewForbidden("access denied")
	}
	if ticket.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewConflict("ticket cannot be closed in current status", map[string]any{
			"status": ticket.Status,
		})
	}
	if err := s.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, ticket.ResolvedAt); err != nil {
		return nil, apperrors.MapError(err)
	}
	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusClosed

	s.recordChange(ctx, ticket.ID, "status", string(domain.TicketStatusClosed), customerID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  customerID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: domain.TicketStatusClosed,
		},
	})
	return ticket, nil
}

// AssignTicket hands a ticket to an agent and moves it to in_progress,
// recording both changes in the audit trail.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, agentID string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin required")
	}
	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !agent.Role.IsStaff() {
		return nil, apperrors.NewConflict("assignee is not an agent", map[string]any{"agent_id": agentID})
	}

	if err := s.tickets.Assign(ctx, ticketID, agentID); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordChange(ctx, ticket.ID, "assigned_agent_id", agentID, actor.ID)
	s.recordChange(ctx, ticket.ID, "status", string(domain.TicketStatusInProgress), actor.ID)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketAssignedPayload{AgentID: agentID},
	})
	return ticket, nil
}

// ListAgents returns the agents available for assignment.
func (s *TicketService) ListAgents(ctx context.Context) ([]domain.User, error) {
	agents, err := s.users.ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// ListHistory returns the ticket's audit trail, newest first.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.getAccessible(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) getAccessible(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !actor.Role.IsStaff() && ticket.CustomerID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// recordChange best-effort appends an audit entry; a failed append never
// fails the user-facing operation.
func (s *TicketService) recordChange(ctx context.Context, ticketID, field, newValue, changedBy string) {
	entry := &domain.TicketHistory{
		TicketID:  ticketID,
		FieldName: field,
		NewValue:  newValue,
		ChangedBy: changedBy,
	}
	_ = s.history.Create(ctx, entry)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusOnHold, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusOnHold, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusOnHold:     {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
