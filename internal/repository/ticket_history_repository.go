package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/chamados-service/internal/domain"
)

// TicketHistoryRepository stores audit entries.
type TicketHistoryRepository interface {
	Append(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, entry *domain.TicketHistory) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, actor_id, operation, from_status, to_status, assignee_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Operation,
		entry.FromStatus,
		entry.ToStatus,
		entry.AssigneeID,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, actor_id, operation, from_status, to_status, assignee_id, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var (
			entry      domain.TicketHistory
			fromStatus string
			toStatus   string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Operation,
			&fromStatus,
			&toStatus,
			&entry.AssigneeID,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.FromStatus = domain.TicketStatus(fromStatus)
		entry.ToStatus = domain.TicketStatus(toStatus)
		result = append(result, entry)
	}
	return result, rows.Err()
}

// MemoryTicketHistoryRepository is the in-process counterpart used with the memory ticket store.
type MemoryTicketHistoryRepository struct {
	mu      sync.Mutex
	entries map[int64][]domain.TicketHistory
	nextID  int64
}

// NewMemoryTicketHistoryRepository returns an empty history.
func NewMemoryTicketHistoryRepository() *MemoryTicketHistoryRepository {
	return &MemoryTicketHistoryRepository{entries: make(map[int64][]domain.TicketHistory)}
}

func (r *MemoryTicketHistoryRepository) Append(ctx context.Context, entry *domain.TicketHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	stored := *entry
	if entry.AssigneeID != nil {
		id := *entry.AssigneeID
		stored.AssigneeID = &id
	}
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], stored)
	return nil
}

func (r *MemoryTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	result := append([]domain.TicketHistory(nil), r.entries[ticketID]...)
	r.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
