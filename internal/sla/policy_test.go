package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func testPolicy() Policy {
	return NewPolicy(map[domain.TicketPriority]int{
		domain.TicketPriorityLow:    72,
		domain.TicketPriorityMedium: 24,
		domain.TicketPriorityHigh:   4,
	}, 24)
}

func TestComputeDeadlinePerPriority(t *testing.T) {
	policy := testPolicy()
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, createdAt.Add(72*time.Hour), policy.ComputeDeadline(domain.TicketPriorityLow, createdAt))
	assert.Equal(t, createdAt.Add(24*time.Hour), policy.ComputeDeadline(domain.TicketPriorityMedium, createdAt))
	assert.Equal(t, createdAt.Add(4*time.Hour), policy.ComputeDeadline(domain.TicketPriorityHigh, createdAt))
}

func TestComputeDeadlineUnknownPriorityFallsBack(t *testing.T) {
	policy := testPolicy()
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got := policy.ComputeDeadline(domain.TicketPriority("urgent"), createdAt)
	assert.Equal(t, createdAt.Add(24*time.Hour), got)
}

func TestComputeDeadlineDeterministic(t *testing.T) {
	policy := testPolicy()
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	first := policy.ComputeDeadline(domain.TicketPriorityHigh, createdAt)
	second := policy.ComputeDeadline(domain.TicketPriorityHigh, createdAt)
	assert.Equal(t, first, second)
}

func TestNewPolicyNonPositiveDefault(t *testing.T) {
	policy := NewPolicy(nil, 0)
	assert.Equal(t, DefaultResolutionHours, policy.DefaultHours)
	assert.Equal(t, DefaultResolutionHours, policy.ResolutionHours(domain.TicketPriorityMedium))
}

func TestResolutionHoursIgnoresNonPositiveRule(t *testing.T) {
	policy := NewPolicy(map[domain.TicketPriority]int{
		domain.TicketPriorityHigh: -1,
	}, 24)
	assert.Equal(t, 24, policy.ResolutionHours(domain.TicketPriorityHigh))
}
