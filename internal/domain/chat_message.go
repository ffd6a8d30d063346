package domain

import "time"

// ChatMessage captures communications in a ticket thread. Internal messages
// are visible to agents and admins only, never to the customer.
type ChatMessage struct {
	ID         string
	TicketID   string
	SenderID   string
	Message    string
	IsInternal bool
	CreatedAt  time.Time
}
