package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusOnHold     TicketStatus = "on_hold"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// IsTerminal reports whether SLA tracking no longer applies to the status.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	ExternalKey     string
	CustomerID      string
	AssignedAgentID *string
	Title           string
	Description     string
	Category        string
	Status          TicketStatus
	Priority        TicketPriority
	SLADeadline     time.Time
	IsOverdue       bool
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
