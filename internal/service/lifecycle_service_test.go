package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/events"
	"github.com/spec-kit/chamados-service/internal/observability"
	"github.com/spec-kit/chamados-service/internal/repository"
	apperrors "github.com/spec-kit/chamados-service/pkg/util/errorutil"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type lifecycleFixture struct {
	svc     *LifecycleService
	repo    *repository.MemoryTicketRepository
	history *repository.MemoryTicketHistoryRepository
	clock   *fixedClock
	events  *recorder
	metrics *observability.Metrics
}

func newLifecycleFixture() *lifecycleFixture {
	repo := repository.NewMemoryTicketRepository()
	clock := &fixedClock{now: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketClaimed,
		events.EventTicketConcluded,
		events.EventTicketRejected,
		events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(eventType, rec.handle)
	}
	history := repository.NewMemoryTicketHistoryRepository()
	NewNotificationService(dispatcher, history, nil).RegisterHandlers()
	metrics := observability.NewMetrics()
	svc := NewLifecycleService(LifecycleDependencies{
		TicketRepo: repo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clock.Now,
	})
	return &lifecycleFixture{svc: svc, repo: repo, history: history, clock: clock, events: rec, metrics: metrics}
}

func (f *lifecycleFixture) open(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Open(context.Background(), OpenTicketInput{
		RequesterID: 1,
		Title:       "Notebook não liga",
		Category:    "Hardware",
		Priority:    "Alta",
	})
	require.NoError(t, err)
	return ticket
}

func errorCode(err error) string {
	domainErr := apperrors.ToDomainError(err)
	if domainErr == nil {
		return ""
	}
	return domainErr.Code
}

func TestOpenDefaultsAndValidation(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	ticket := f.open(t)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	assert.Equal(t, f.clock.Now(), ticket.OpenedAt)
	assert.Nil(t, ticket.AssigneeID)

	plain, err := f.svc.Open(ctx, OpenTicketInput{RequesterID: 1, Title: "Senha expirada"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, plain.Priority)

	_, err = f.svc.Open(ctx, OpenTicketInput{RequesterID: 1, Title: "   "})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	_, err = f.svc.Open(ctx, OpenTicketInput{Title: "sem solicitante"})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	_, err = f.svc.Open(ctx, OpenTicketInput{RequesterID: 1, Title: "x", Priority: "whenever"})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))
}

func TestClaimConcludeScenario(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	ticket := f.open(t)

	f.clock.Advance(time.Hour)
	claimed, err := f.svc.Claim(ctx, ticket.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, claimed.Status)
	require.NotNil(t, claimed.AssigneeID)
	assert.Equal(t, int64(7), *claimed.AssigneeID)
	require.NotNil(t, claimed.AssignedAt)
	assert.Equal(t, f.clock.Now(), *claimed.AssignedAt)

	_, err = f.svc.Claim(ctx, ticket.ID, 9)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.Equal(t, "ALREADY_CLAIMED", errorCode(err))

	_, err = f.svc.Conclude(ctx, ticket.ID, 9)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	f.clock.Advance(4 * time.Hour)
	concluded, err := f.svc.Conclude(ctx, ticket.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusConcluded, concluded.Status)
	require.NotNil(t, concluded.ClosedAt)
	assert.Equal(t, 5*time.Hour, concluded.ClosedAt.Sub(concluded.OpenedAt))

	stored, err := f.svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *stored.AssigneeID)

	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketClaimed, events.EventTicketConcluded}, f.events.types())
	snapshot := f.metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.Lifecycle["claim|ALREADY_CLAIMED"])
	assert.Equal(t, int64(1), snapshot.Lifecycle["conclude|NOT_OWNER"])
}

func TestConcurrentClaimsHaveExactlyOneWinner(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.open(t)

	const analysts = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		losers  int
	)
	start := make(chan struct{})
	for i := 0; i < analysts; i++ {
		wg.Add(1)
		go func(analystID int64) {
			defer wg.Done()
			<-start
			_, err := f.svc.Claim(context.Background(), ticket.ID, analystID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, analystID)
				return
			}
			if assert.ErrorIs(t, err, domain.ErrAlreadyClaimed) {
				losers++
			}
		}(int64(100 + i))
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, analysts-1, losers)

	stored, err := f.svc.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], *stored.AssigneeID)
}

func TestTerminalTicketsAreImmutable(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	ticket := f.open(t)

	_, err := f.svc.Claim(ctx, ticket.ID, 7)
	require.NoError(t, err)
	_, err = f.svc.Conclude(ctx, ticket.ID, 7)
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, ticket.ID, 9)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.svc.Conclude(ctx, ticket.ID, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.svc.Reject(ctx, ticket.ID, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := f.svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusConcluded, stored.Status)
}

func TestConcludeRequiresClaim(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.open(t)

	_, err := f.svc.Conclude(context.Background(), ticket.ID, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, "INVALID_STATE", errorCode(err))
}

func TestRejectFromOpenAndInProgress(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	open := f.open(t)
	f.clock.Advance(30 * time.Minute)
	rejected, err := f.svc.Reject(ctx, open.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRejected, rejected.Status)
	assert.Nil(t, rejected.AssigneeID)
	require.NotNil(t, rejected.ClosedAt)

	claimed := f.open(t)
	_, err = f.svc.Claim(ctx, claimed.ID, 7)
	require.NoError(t, err)
	rejected, err = f.svc.Reject(ctx, claimed.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRejected, rejected.Status)
	assert.Equal(t, int64(7), *rejected.AssigneeID)
}

func TestUnknownTicket(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()

	_, err := f.svc.Get(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Claim(ctx, 404, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Conclude(ctx, 404, 7)
	assert.Equal(t, "NOT_FOUND", errorCode(err))
	_, err = f.svc.Reject(ctx, 404, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, 404, 1), domain.ErrNotFound)
}

func TestDeleteRemovesTicketInAnyStatus(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	ticket := f.open(t)
	_, err := f.svc.Claim(ctx, ticket.ID, 7)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, ticket.ID, 1))

	_, err = f.svc.Get(ctx, ticket.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, f.events.types(), events.EventTicketDeleted)
}

func TestLegacyStatusIsClaimable(t *testing.T) {
	f := newLifecycleFixture()
	ctx := context.Background()
	legacy := &domain.Ticket{
		Title:       "Importado",
		Status:      "Aberto",
		Priority:    domain.TicketPriorityLow,
		RequesterID: 1,
		OpenedAt:    f.clock.Now(),
	}
	require.NoError(t, f.repo.Create(ctx, legacy))

	claimed, err := f.svc.Claim(ctx, legacy.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, claimed.Status)
}

func TestEventsCarryCallerRole(t *testing.T) {
	f := newLifecycleFixture()
	ticket := f.open(t)

	ctx := domain.ContextWithActor(context.Background(), domain.Actor{ID: 7, Role: domain.ActorRoleAnalyst})
	_, err := f.svc.Claim(ctx, ticket.ID, 7)
	require.NoError(t, err)

	// A caller in ctx that is not the acting id does not lend its role.
	other := domain.ContextWithActor(context.Background(), domain.Actor{ID: 99, Role: domain.ActorRoleAdmin})
	_, err = f.svc.Reject(other, ticket.ID, 5)
	require.NoError(t, err)

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	require.Len(t, f.events.events, 3)
	assert.Equal(t, domain.ActorRole(""), f.events.events[0].Actor.Role)
	assert.Equal(t, events.Actor{ID: 7, Role: domain.ActorRoleAnalyst}, f.events.events[1].Actor)
	assert.Equal(t, events.Actor{ID: 5}, f.events.events[2].Actor)
}
