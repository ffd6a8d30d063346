package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DefaultResolutionHours is the allowance applied when a priority has no
// configured rule. Callers rely on this fallback; an unknown priority must
// never fail ticket creation.
const DefaultResolutionHours = 24

// Policy maps ticket priorities to their resolution-time allowance in hours.
type Policy struct {
	Rules        map[domain.TicketPriority]int
	DefaultHours int
}

// NewPolicy builds a policy from explicit per-priority allowances.
func NewPolicy(rules map[domain.TicketPriority]int, defaultHours int) Policy {
	if defaultHours <= 0 {
		defaultHours = DefaultResolutionHours
	}
	return Policy{Rules: rules, DefaultHours: defaultHours}
}

// ResolutionHours returns the allowance for a priority, falling back to the
// policy default when no rule is configured or the rule is non-positive.
func (p Policy) ResolutionHours(priority domain.TicketPriority) int {
	if hours, ok := p.Rules[priority]; ok && hours > 0 {
		return hours
	}
	return p.DefaultHours
}

// ComputeDeadline returns createdAt plus the priority's allowance, using
// fixed-width hour arithmetic. Pure: same inputs always yield the same
// deadline.
func (p Policy) ComputeDeadline(priority domain.TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(time.Duration(p.ResolutionHours(priority)) * time.Hour)
}
