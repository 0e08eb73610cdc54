//go:build integration

package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/persistence"
	"github.com/spec-kit/chamados-service/internal/query"
)

// Run with: POSTGRES_TEST_DSN=postgres://... go test -tags integration ./internal/repository/
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()))
	return pool
}

func createPostgresTicket(t *testing.T, repo TicketRepository, pool *pgxpool.Pool) *domain.Ticket {
	t.Helper()
	ctx := context.Background()

	var requesterID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO users (name) VALUES ('Ana') RETURNING id`).Scan(&requesterID))

	ticket := newOpenTicket(requesterID)
	require.NoError(t, repo.Create(ctx, ticket))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM tickets WHERE id=$1`, ticket.ID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id=$1`, requesterID)
	})
	return ticket
}

func TestPostgresConcurrentClaimsHaveOneWinner(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewTicketRepository(pool)
	ticket := createPostgresTicket(t, repo, pool)

	const analysts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < analysts; i++ {
		wg.Add(1)
		go func(analystID int64) {
			defer wg.Done()
			<-start
			_, err := repo.ConditionalUpdate(context.Background(), ticket.ID,
				[]domain.TicketStatus{domain.TicketStatusOpen}, claimBy(analystID, time.Now()))
			mu.Lock()
			defer mu.Unlock()
			var conflict *ConflictError
			switch {
			case err == nil:
				wins++
			case errors.As(err, &conflict):
				assert.Equal(t, domain.TicketStatusInProgress, conflict.Current)
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(100 + i))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, analysts-1, conflicts)

	stored, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
	require.NotNil(t, stored.AssigneeID)
}

func TestPostgresConditionalUpdateRollsBackOnMutationError(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewTicketRepository(pool)
	ticket := createPostgresTicket(t, repo, pool)
	ctx := context.Background()

	_, err := repo.ConditionalUpdate(ctx, ticket.ID, []domain.TicketStatus{domain.TicketStatusOpen},
		func(t *domain.Ticket) error {
			t.Status = domain.TicketStatusRejected
			return domain.ErrNotOwner
		})
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	stored, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestPostgresConditionalUpdateUnknownTicket(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewTicketRepository(pool)

	_, err := repo.ConditionalUpdate(context.Background(), -1,
		[]domain.TicketStatus{domain.TicketStatusOpen}, claimBy(7, time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresListWindowUsesCallerClock(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewTicketRepository(pool)
	ticket := createPostgresTicket(t, repo, pool)
	ctx := context.Background()

	recent, err := repo.List(ctx, query.Filter{WithinDays: 1}, time.Now())
	require.NoError(t, err)
	assert.True(t, containsTicket(recent, ticket.ID))

	// A week ahead, the ticket falls outside a one day window.
	later, err := repo.List(ctx, query.Filter{WithinDays: 1}, time.Now().AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.False(t, containsTicket(later, ticket.ID))
}

func containsTicket(tickets []domain.Ticket, id int64) bool {
	for _, t := range tickets {
		if t.ID == id {
			return true
		}
	}
	return false
}
