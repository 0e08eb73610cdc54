package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/query"
)

type memoryEntry struct {
	mu      sync.Mutex
	ticket  domain.Ticket
	deleted bool
}

// MemoryTicketRepository keeps tickets in process memory. It backs local development
// and tests; each record carries its own lock so updates of different tickets never
// wait on each other.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	entries map[int64]*memoryEntry
	names   map[int64]string
	nextID  int64
	now     func() time.Time
}

// NewMemoryTicketRepository returns an empty in-memory store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{
		entries: make(map[int64]*memoryEntry),
		names:   make(map[int64]string),
		now:     time.Now,
	}
}

// RegisterUser records a display name used for requester/assignee lookups.
func (r *MemoryTicketRepository) RegisterUser(id int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[id] = name
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticket.ID == 0 {
		r.nextID++
		ticket.ID = r.nextID
	} else if _, exists := r.entries[ticket.ID]; exists {
		return fmt.Errorf("ticket %d already exists", ticket.ID)
	} else if ticket.ID > r.nextID {
		r.nextID = ticket.ID
	}
	if ticket.OpenedAt.IsZero() {
		ticket.OpenedAt = r.now()
	}
	r.entries[ticket.ID] = &memoryEntry{ticket: ticket.Clone()}
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, domain.ErrNotFound
	}
	ticket := r.present(entry.ticket)
	return &ticket, nil
}

func (r *MemoryTicketRepository) ConditionalUpdate(ctx context.Context, id int64, expected []domain.TicketStatus, mutate Mutation) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return nil, domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.deleted {
		return nil, domain.ErrNotFound
	}
	current := domain.NormalizeStatus(string(entry.ticket.Status))
	if !statusIn(current, expected) {
		return nil, &ConflictError{TicketID: id, Current: current, Expected: expected}
	}

	next := entry.ticket.Clone()
	next.Status = current
	if err := mutate(&next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("ticket %d: %w", id, err)
	}
	entry.ticket = next.Clone()

	out := r.present(next)
	return &out, nil
}

func (r *MemoryTicketRepository) List(ctx context.Context, filter query.Filter, now time.Time) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	entries := make([]*memoryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	snapshot := make([]domain.Ticket, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if !entry.deleted {
			snapshot = append(snapshot, entry.ticket.Clone())
		}
		entry.mu.Unlock()
	}
	for i := range snapshot {
		snapshot[i] = r.present(snapshot[i])
	}
	return filter.Apply(snapshot, now), nil
}

func (r *MemoryTicketRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	// An updater may already hold the entry; mark it so it cannot resurrect the record.
	entry.mu.Lock()
	entry.deleted = true
	entry.mu.Unlock()
	return nil
}

func (r *MemoryTicketRepository) lookup(id int64) (*memoryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// present fills display names the way the SQL join does.
func (r *MemoryTicketRepository) present(ticket domain.Ticket) domain.Ticket {
	out := ticket.Clone()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[out.RequesterID]; ok && out.RequesterName == "" {
		out.RequesterName = name
	}
	if out.AssigneeID != nil {
		if name, ok := r.names[*out.AssigneeID]; ok {
			out.AssigneeName = name
		}
	}
	return out
}
