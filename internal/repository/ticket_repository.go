package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/query"
)

// ConflictError reports that a conditional update found the ticket in an unexpected status.
type ConflictError struct {
	TicketID int64
	Current  domain.TicketStatus
	Expected []domain.TicketStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("ticket %d is %s, expected one of %v", e.TicketID, e.Current, e.Expected)
}

// Mutation edits a locked copy of the ticket. Returning an error aborts the update
// and leaves the stored record untouched.
type Mutation func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// ConditionalUpdate applies mutate only if the current status is one of expected.
	// The check and the write are atomic with respect to other updates of the same ticket.
	ConditionalUpdate(ctx context.Context, id int64, expected []domain.TicketStatus, mutate Mutation) (*domain.Ticket, error)
	// List returns the tickets matching filter; now anchors the WithinDays window.
	List(ctx context.Context, filter query.Filter, now time.Time) ([]domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.title, COALESCE(t.description, ''), COALESCE(t.category, ''), t.priority, t.status,
               t.requester_id, COALESCE(r.name, ''), t.assignee_id, COALESCE(a.name, ''),
               t.opened_at, t.assigned_at, t.closed_at`

const ticketFrom = `FROM tickets t
             LEFT JOIN users r ON r.id = t.requester_id
             LEFT JOIN users a ON a.id = t.assignee_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category, priority, status, requester_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, opened_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.RequesterID,
	).Scan(&ticket.ID, &ticket.OpenedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` ` + ticketFrom + ` WHERE t.id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ConditionalUpdate(ctx context.Context, id int64, expected []domain.TicketStatus, mutate Mutation) (*domain.Ticket, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// FOR UPDATE OF t serializes concurrent writers of this row only.
	lockQuery := `SELECT ` + ticketColumns + ` ` + ticketFrom + ` WHERE t.id=$1 FOR UPDATE OF t`
	current, err := scanTicket(tx.QueryRow(ctx, lockQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !statusIn(current.Status, expected) {
		return nil, &ConflictError{TicketID: id, Current: current.Status, Expected: expected}
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("ticket %d: %w", id, err)
	}

	const update = `
        UPDATE tickets SET status=$1, assignee_id=$2, assigned_at=$3, closed_at=$4
        WHERE id=$5`
	cmd, err := tx.Exec(ctx, update, next.Status, next.AssigneeID, next.AssignedAt, next.ClosedAt, id)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if next.AssigneeID != nil && next.AssigneeName == "" {
		// Best effort; the name is presentation only.
		_ = r.pool.QueryRow(ctx, `SELECT name FROM users WHERE id=$1`, *next.AssigneeID).Scan(&next.AssigneeName)
	}
	return &next, nil
}

func (r *ticketRepository) List(ctx context.Context, filter query.Filter, now time.Time) ([]domain.Ticket, error) {
	sql, args := buildListQuery(filter, now)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	return filter.Apply(tickets, now), nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// buildListQuery pushes the filter predicates down to SQL. Status and priority are
// stored as free text by legacy writers, so those two are narrowed again in memory.
func buildListQuery(filter query.Filter, now time.Time) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if term := filter.SearchTerm(); term != "" {
		args = append(args, "%"+term+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE %s OR LOWER(COALESCE(r.name, '')) LIKE %s OR LOWER(COALESCE(a.name, '')) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	if since, ok := filter.Since(now); ok {
		args = append(args, since)
		clauses = append(clauses, fmt.Sprintf("t.opened_at >= $%d", len(args)))
		args = append(args, now)
		clauses = append(clauses, fmt.Sprintf("t.opened_at <= $%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assignee_id=$%d", len(args)))
	}

	order := "t.id DESC, t.opened_at DESC"
	switch filter.Order {
	case query.OrderIDAsc:
		order = "t.id ASC, t.opened_at DESC"
	case query.OrderOpenedDesc:
		order = "t.opened_at DESC, t.id DESC"
	case query.OrderOpenedAsc:
		order = "t.opened_at ASC, t.id ASC"
	}

	sql := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s`,
		ticketColumns, ticketFrom, strings.Join(clauses, " AND "), order)
	return sql, args
}

func statusIn(status domain.TicketStatus, expected []domain.TicketStatus) bool {
	for _, candidate := range expected {
		if status == candidate {
			return true
		}
	}
	return false
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		status   string
		priority string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&priority,
		&status,
		&ticket.RequesterID,
		&ticket.RequesterName,
		&ticket.AssigneeID,
		&ticket.AssigneeName,
		&ticket.OpenedAt,
		&ticket.AssignedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.NormalizeStatus(status)
	if p, ok := domain.ParsePriority(priority); ok {
		ticket.Priority = p
	} else {
		ticket.Priority = domain.TicketPriority(priority)
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
