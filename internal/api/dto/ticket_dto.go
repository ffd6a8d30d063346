package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Message    string `json:"message"`
	IsInternal bool   `json:"is_internal"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID string `json:"agent_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	ExternalKey     string                `json:"external_key"`
	Title           string                `json:"title"`
	Category        string                `json:"category,omitempty"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	SLADeadline     time.Time             `json:"sla_deadline"`
	IsOverdue       bool                  `json:"is_overdue"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string                `json:"description"`
	CustomerID  string                `json:"customer_id"`
	Messages    []ChatMessageResponse `json:"messages"`
}

// ChatMessageResponse represents a thread message.
type ChatMessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	Message    string    `json:"message"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// TicketHistoryResponse represents an audit entry.
type TicketHistoryResponse struct {
	ID        string    `json:"id"`
	FieldName string    `json:"field_name"`
	NewValue  string    `json:"new_value"`
	ChangedBy string    `json:"changed_by"`
	CreatedAt time.Time `json:"created_at"`
}
