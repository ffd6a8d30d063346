package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const systemActor = "00000000-0000-0000-0000-000000000001"

type storedTicket struct {
	BreachedTicket
	status    domain.TicketStatus
	isOverdue bool
}

// fakeStore applies the scanner's selection and ordering contract in memory.
type fakeStore struct {
	tickets map[string]*storedTicket
	order   []string

	audits []domain.TicketHistory
	notes  []string

	markErr  map[string]error
	auditErr error
	noteErr  error
	scanErr  error

	calls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets: map[string]*storedTicket{},
		markErr: map[string]error{},
	}
}

func (s *fakeStore) add(ticket BreachedTicket, status domain.TicketStatus, overdue bool) {
	s.tickets[ticket.ID] = &storedTicket{BreachedTicket: ticket, status: status, isOverdue: overdue}
	s.order = append(s.order, ticket.ID)
}

func (s *fakeStore) FindBreached(_ context.Context, now time.Time) ([]BreachedTicket, error) {
	s.calls = append(s.calls, "scan")
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	var out []BreachedTicket
	for _, id := range s.order {
		t := s.tickets[id]
		if !t.Deadline.Before(now) || t.isOverdue || t.status.IsTerminal() {
			continue
		}
		out = append(out, t.BreachedTicket)
	}
	SortBreached(out)
	return out, nil
}

func (s *fakeStore) MarkOverdue(_ context.Context, ticketID string) error {
	s.calls = append(s.calls, "mark:"+ticketID)
	if err := s.markErr[ticketID]; err != nil {
		return err
	}
	s.tickets[ticketID].isOverdue = true
	return nil
}

func (s *fakeStore) AppendAudit(_ context.Context, entry *domain.TicketHistory) error {
	s.calls = append(s.calls, "audit:"+entry.TicketID)
	if s.auditErr != nil {
		return s.auditErr
	}
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *fakeStore) AppendInternalNote(_ context.Context, ticketID, senderID, text string) error {
	s.calls = append(s.calls, "note:"+ticketID)
	if s.noteErr != nil {
		return s.noteErr
	}
	s.notes = append(s.notes, ticketID+"|"+senderID+"|"+text)
	return nil
}

func (s *fakeStore) OverdueStats(_ context.Context) (OverdueStats, error) {
	var stats OverdueStats
	for _, t := range s.tickets {
		if !t.isOverdue || t.status.IsTerminal() {
			continue
		}
		stats.TotalOverdue++
		if t.Priority == domain.TicketPriorityHigh {
			stats.HighPriorityOverdue++
		}
		if t.AgentName == nil {
			stats.UnassignedOverdue++
		}
	}
	return stats, nil
}

type fakeNotifier struct {
	notices []EscalationNotice
}

func (n *fakeNotifier) NotifyEscalation(_ context.Context, notice EscalationNotice) {
	n.notices = append(n.notices, notice)
}

func strPtr(s string) *string { return &s }

func breached(id string, priority domain.TicketPriority, deadline time.Time, agent *string) BreachedTicket {
	return BreachedTicket{
		ID:           id,
		Title:        "ticket " + id,
		Priority:     priority,
		Deadline:     deadline,
		CustomerName: "Casey Customer",
		AgentName:    agent,
	}
}

func TestRunCycleEscalatesBreachedTickets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("t1", domain.TicketPriorityHigh, now.Add(-time.Hour), strPtr("Avery Agent")), domain.TicketStatusInProgress, false)
	store.add(breached("t2", domain.TicketPriorityLow, now.Add(-2*time.Hour), nil), domain.TicketStatusOpen, false)
	notifier := &fakeNotifier{}
	engine := NewEngine(store, notifier, zap.NewNop(), systemActor)

	escalated, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, escalated)

	assert.True(t, store.tickets["t1"].isOverdue)
	assert.True(t, store.tickets["t2"].isOverdue)

	require.Len(t, store.audits, 2)
	assert.Equal(t, "escalated", store.audits[0].FieldName)
	assert.Equal(t, "overdue", store.audits[0].NewValue)
	assert.Equal(t, systemActor, store.audits[0].ChangedBy)

	require.Len(t, store.notes, 2)
	assert.Contains(t, store.notes[0], EscalationNoteBody)

	require.Len(t, notifier.notices, 2)
	assert.Equal(t, "Avery Agent", notifier.notices[0].AgentName)
	assert.Equal(t, UnassignedAgentName, notifier.notices[1].AgentName)
	assert.Equal(t, "Casey Customer", notifier.notices[0].CustomerName)
}

func TestRunCycleSkipsFutureTerminalAndFlagged(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("future", domain.TicketPriorityHigh, now.Add(time.Hour), nil), domain.TicketStatusOpen, false)
	store.add(breached("resolved", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusResolved, false)
	store.add(breached("closed", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusClosed, false)
	store.add(breached("flagged", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusOpen, true)
	engine := NewEngine(store, &fakeNotifier{}, zap.NewNop(), systemActor)

	escalated, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, escalated)
	assert.Empty(t, store.audits)
}

func TestRunCycleSecondPassIsEmpty(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("t1", domain.TicketPriorityMedium, now.Add(-time.Hour), nil), domain.TicketStatusOpen, false)
	notifier := &fakeNotifier{}
	engine := NewEngine(store, notifier, zap.NewNop(), systemActor)

	first, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, second)
	assert.Len(t, notifier.notices, 1)
}

func TestRunCycleScanFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.scanErr = errors.New("connection refused")
	engine := NewEngine(store, &fakeNotifier{}, zap.NewNop(), systemActor)

	escalated, err := engine.RunCycle(context.Background(), time.Now())
	assert.Error(t, err)
	assert.Zero(t, escalated)
}

func TestRunCycleMarkFailureLeavesTicketForRetry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("bad", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusOpen, false)
	store.add(breached("good", domain.TicketPriorityLow, now.Add(-time.Hour), nil), domain.TicketStatusOpen, false)
	store.markErr["bad"] = errors.New("write failed")
	notifier := &fakeNotifier{}
	engine := NewEngine(store, notifier, zap.NewNop(), systemActor)

	escalated, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)
	assert.False(t, store.tickets["bad"].isOverdue)
	assert.Len(t, notifier.notices, 1)

	// Next cycle picks the failed ticket up again.
	store.markErr = map[string]error{}
	escalated, err = engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)
	assert.True(t, store.tickets["bad"].isOverdue)
}

func TestRunCycleNoteFailureIsNotRetried(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("t1", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusOpen, false)
	store.noteErr = errors.New("write failed")
	notifier := &fakeNotifier{}
	engine := NewEngine(store, notifier, zap.NewNop(), systemActor)

	escalated, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)
	assert.True(t, store.tickets["t1"].isOverdue)
	assert.Empty(t, store.notes)
	// Notification still goes out even though the note write failed.
	assert.Len(t, notifier.notices, 1)

	store.noteErr = nil
	second, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, second)
	assert.Empty(t, store.notes)
}

func TestSortBreachedPriorityThenDeadline(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tickets := []BreachedTicket{
		breached("low-old", domain.TicketPriorityLow, now.Add(-5*time.Hour), nil),
		breached("high-recent", domain.TicketPriorityHigh, now.Add(-time.Hour), nil),
		breached("high-old", domain.TicketPriorityHigh, now.Add(-3*time.Hour), nil),
	}

	SortBreached(tickets)

	var ids []string
	for _, ticket := range tickets {
		ids = append(ids, ticket.ID)
	}
	// A low-priority ticket five hours past deadline still yields to every
	// high-priority breach; ties on priority break by oldest deadline.
	assert.Equal(t, []string{"high-old", "high-recent", "low-old"}, ids)
}

func TestSortBreachedUnknownPriorityLast(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tickets := []BreachedTicket{
		breached("mystery", domain.TicketPriority("urgent"), now.Add(-8*time.Hour), nil),
		breached("low", domain.TicketPriorityLow, now.Add(-time.Hour), nil),
	}

	SortBreached(tickets)
	assert.Equal(t, "low", tickets[0].ID)
	assert.Equal(t, "mystery", tickets[1].ID)
}

func TestRunCycleHandlesMostUrgentFirst(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	// Inserted least urgent first; handling order must not follow insertion.
	store.add(breached("low-old", domain.TicketPriorityLow, now.Add(-5*time.Hour), nil), domain.TicketStatusOpen, false)
	store.add(breached("high-recent", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusOpen, false)
	store.add(breached("high-old", domain.TicketPriorityHigh, now.Add(-3*time.Hour), nil), domain.TicketStatusOpen, false)
	notifier := &fakeNotifier{}
	engine := NewEngine(store, notifier, zap.NewNop(), systemActor)

	escalated, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, escalated)

	assert.Equal(t, []string{
		"scan",
		"mark:high-old", "audit:high-old", "note:high-old",
		"mark:high-recent", "audit:high-recent", "note:high-recent",
		"mark:low-old", "audit:low-old", "note:low-old",
	}, store.calls)

	require.Len(t, notifier.notices, 3)
	assert.Equal(t, "high-old", notifier.notices[0].TicketID)
	assert.Equal(t, "high-recent", notifier.notices[1].TicketID)
	assert.Equal(t, "low-old", notifier.notices[2].TicketID)
}

func TestEscalationSideEffectOrder(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("t1", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusOpen, false)
	engine := NewEngine(store, &fakeNotifier{}, zap.NewNop(), systemActor)

	_, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"scan", "mark:t1", "audit:t1", "note:t1"}, store.calls)
}

func TestOverdueStatsCountsFlaggedActiveTickets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("high-unassigned", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusOpen, true)
	store.add(breached("low-assigned", domain.TicketPriorityLow, now.Add(-time.Hour), strPtr("Avery Agent")), domain.TicketStatusInProgress, true)
	store.add(breached("resolved-flagged", domain.TicketPriorityHigh, now.Add(-time.Hour), nil), domain.TicketStatusResolved, true)
	engine := NewEngine(store, nil, zap.NewNop(), systemActor)

	stats, err := engine.OverdueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalOverdue)
	assert.Equal(t, 1, stats.HighPriorityOverdue)
	assert.Equal(t, 1, stats.UnassignedOverdue)
}

func TestRunCycleWithNilNotifier(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.add(breached("t1", domain.TicketPriorityLow, now.Add(-time.Hour), nil), domain.TicketStatusOpen, false)
	engine := NewEngine(store, nil, zap.NewNop(), systemActor)

	escalated, err := engine.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)
}
