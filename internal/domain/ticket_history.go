package domain

import "time"

// TicketHistory is an immutable audit trail entry recording a single field
// change on a ticket, attributed to the user (or system actor) who made it.
type TicketHistory struct {
	ID        string
	TicketID  string
	FieldName string
	NewValue  string
	ChangedBy string
	CreatedAt time.Time
}
