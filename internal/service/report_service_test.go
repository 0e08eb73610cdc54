package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/query"
	"github.com/spec-kit/chamados-service/internal/repository"
)

func TestReportKpisOverFilteredTickets(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	f.repo.RegisterUser(7, "Carla")

	first := f.open(t)
	second := f.open(t)
	f.open(t)

	_, err := f.svc.Claim(ctx, first.ID, 7)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Hour)
	_, err = f.svc.Conclude(ctx, first.ID, 7)
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, second.ID, 7)
	require.NoError(t, err)

	reports := NewReportService(f.repo, f.history, f.clock.Now)
	snapshot, err := reports.Kpis(ctx, query.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.Total)
	assert.Equal(t, 1, snapshot.Counts.Get(domain.TicketStatusOpen))
	assert.Equal(t, 1, snapshot.Counts.Get(domain.TicketStatusInProgress))
	assert.Equal(t, 1, snapshot.Counts.Get(domain.TicketStatusConcluded))
	assert.InDelta(t, 33.333, snapshot.SlaPercentage, 0.01)
	assert.InDelta(t, 5.0, snapshot.MeanResolutionHours, 1e-9)
	require.Len(t, snapshot.ByAssignee, 1)
	assert.Equal(t, "Carla", snapshot.ByAssignee[0].AssigneeName)
	assert.Equal(t, 1, snapshot.ByAssignee[0].InProgress)
	assert.Equal(t, 1, snapshot.ByAssignee[0].Closed)
	assert.Equal(t, f.clock.Now(), snapshot.GeneratedAt)

	assigned := int64(7)
	mine, err := reports.ListFiltered(ctx, query.Filter{AssignedTo: &assigned, Order: query.OrderIDAsc})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, first.ID, mine[0].ID)
}

func TestReportOnEmptyStore(t *testing.T) {
	reports := NewReportService(repository.NewMemoryTicketRepository(), nil, nil)
	snapshot, err := reports.Kpis(context.Background(), query.Filter{Status: domain.TicketStatusOpen})
	require.NoError(t, err)

	assert.Zero(t, snapshot.Total)
	assert.Zero(t, snapshot.SlaPercentage)
	assert.Zero(t, snapshot.MeanResolutionHours)
	assert.Empty(t, snapshot.ByAssignee)
}

func TestComputeKpisIsPure(t *testing.T) {
	reports := NewReportService(repository.NewMemoryTicketRepository(), nil, nil)
	tickets := []domain.Ticket{{Status: "Aberto"}, {Status: "arquivado"}}

	snapshot := reports.ComputeKpis(tickets)
	assert.Equal(t, 1, snapshot.Counts.Get(domain.TicketStatusOpen))
	assert.Equal(t, 1, snapshot.Counts.Get(domain.TicketStatusOther))
	assert.Equal(t, domain.TicketStatus("Aberto"), tickets[0].Status)
}

func TestHistoryFollowsLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	ticket := f.open(t)

	f.clock.Advance(time.Minute)
	_, err := f.svc.Claim(ctx, ticket.ID, 7)
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, ticket.ID, 9)
	require.Error(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Reject(ctx, ticket.ID, 9)
	require.NoError(t, err)

	reports := NewReportService(f.repo, f.history, f.clock.Now)
	entries, err := reports.History(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "ticket_created", entries[0].Operation)
	assert.Equal(t, domain.TicketStatusOpen, entries[0].ToStatus)

	assert.Equal(t, "ticket_claimed", entries[1].Operation)
	assert.Equal(t, domain.TicketStatusOpen, entries[1].FromStatus)
	assert.Equal(t, domain.TicketStatusInProgress, entries[1].ToStatus)
	require.NotNil(t, entries[1].AssigneeID)
	assert.Equal(t, int64(7), *entries[1].AssigneeID)

	assert.Equal(t, "ticket_rejected", entries[2].Operation)
	assert.Equal(t, int64(9), entries[2].ActorID)
	assert.Equal(t, domain.TicketStatusRejected, entries[2].ToStatus)

	require.NoError(t, f.svc.Delete(ctx, ticket.ID, 1))
	entries, err = reports.History(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	_, err = reports.History(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryOfTicketWithoutEntries(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryTicketRepository()
	ticket := &domain.Ticket{Title: "Importado", Status: domain.TicketStatusOpen, RequesterID: 1}
	require.NoError(t, repo.Create(ctx, ticket))

	reports := NewReportService(repo, repository.NewMemoryTicketHistoryRepository(), nil)
	entries, err := reports.History(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListFilteredWindowFollowsServiceClock(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()

	old := f.open(t)
	f.clock.Advance(10 * 24 * time.Hour)
	recent := f.open(t)
	f.clock.Advance(time.Hour)

	reports := NewReportService(f.repo, f.history, f.clock.Now)

	lastWeek, err := reports.ListFiltered(ctx, query.Filter{WithinDays: 7})
	require.NoError(t, err)
	require.Len(t, lastWeek, 1)
	assert.Equal(t, recent.ID, lastWeek[0].ID)

	lastMonth, err := reports.ListFiltered(ctx, query.Filter{WithinDays: 30, Order: query.OrderIDAsc})
	require.NoError(t, err)
	require.Len(t, lastMonth, 2)
	assert.Equal(t, old.ID, lastMonth[0].ID)

	snapshot, err := reports.Kpis(ctx, query.Filter{WithinDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Total)
}
