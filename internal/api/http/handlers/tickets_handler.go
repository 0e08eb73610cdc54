package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chamados-service/internal/api/dto"
	"github.com/spec-kit/chamados-service/internal/auth"
	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/kpi"
	"github.com/spec-kit/chamados-service/internal/query"
	"github.com/spec-kit/chamados-service/internal/service"
	apperrors "github.com/spec-kit/chamados-service/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle and reporting endpoints.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
	reports   *service.ReportService
	validator *RequestValidator
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService, reports *service.ReportService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, reports: reports, validator: NewRequestValidator()}
}

// CreateTicket POST /chamados.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Validate(req); err != nil {
		return err
	}
	ticket, err := h.lifecycle.Open(c.UserContext(), service.OpenTicketInput{
		RequesterID: actor.ID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    domain.TicketPriority(req.Priority),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /chamados.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	filter, err := h.parseFilter(c, actor)
	if err != nil {
		return err
	}
	tickets, err := h.reports.ListFiltered(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /chamados/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ClaimTicket POST /chamados/:id/claim.
func (h *TicketsHandler) ClaimTicket(c *fiber.Ctx) error {
	return h.transition(c, h.lifecycle.Claim)
}

// ConcludeTicket POST /chamados/:id/conclude.
func (h *TicketsHandler) ConcludeTicket(c *fiber.Ctx) error {
	return h.transition(c, h.lifecycle.Conclude)
}

// RejectTicket POST /chamados/:id/reject.
func (h *TicketsHandler) RejectTicket(c *fiber.Ctx) error {
	return h.transition(c, h.lifecycle.Reject)
}

// DeleteTicket DELETE /chamados/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if err := h.lifecycle.Delete(c.UserContext(), id, actor.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Kpis GET /chamados/kpis.
func (h *TicketsHandler) Kpis(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	filter, err := h.parseFilter(c, actor)
	if err != nil {
		return err
	}
	snapshot, err := h.reports.Kpis(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": kpiResponse(snapshot)})
}

// TicketHistory GET /chamados/:id/history.
func (h *TicketsHandler) TicketHistory(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	entries, err := h.reports.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.TicketHistoryResponse{
			ID:         entry.ID,
			TicketID:   entry.TicketID,
			ActorID:    entry.ActorID,
			Operation:  entry.Operation,
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			AssigneeID: entry.AssigneeID,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

type transitionFunc func(ctx context.Context, ticketID, actorID int64) (*domain.Ticket, error)

func (h *TicketsHandler) transition(c *fiber.Ctx, apply transitionFunc) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := apply(c.UserContext(), id, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func (h *TicketsHandler) parseFilter(c *fiber.Ctx, actor domain.Actor) (query.Filter, error) {
	var q dto.TicketListQuery
	if err := c.QueryParser(&q); err != nil {
		return query.Filter{}, apperrors.NewValidationError("invalid query", nil)
	}
	if err := h.validator.Validate(q); err != nil {
		return query.Filter{}, err
	}

	filter := query.Filter{
		Search:     q.Search,
		WithinDays: q.Days,
	}
	if strings.TrimSpace(q.Status) != "" {
		status, ok := domain.ParseStatus(q.Status)
		if !ok {
			return query.Filter{}, apperrors.NewValidationError("unknown status", map[string]any{"status": q.Status})
		}
		filter.Status = status
	}
	if strings.TrimSpace(q.Priority) != "" {
		priority, ok := domain.ParsePriority(q.Priority)
		if !ok {
			return query.Filter{}, apperrors.NewValidationError("unknown priority", map[string]any{"priority": q.Priority})
		}
		filter.Priority = priority
	}
	order, ok := query.ParseOrder(q.Order)
	if !ok {
		return query.Filter{}, apperrors.NewValidationError("unknown order", map[string]any{"order": q.Order})
	}
	filter.Order = order
	if q.Mine {
		id := actor.ID
		filter.AssignedTo = &id
	}
	return filter, nil
}

func actorFromContext(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:             ticket.ID,
		Title:          ticket.Title,
		Category:       ticket.Category,
		Priority:       ticket.Priority.Label(),
		Status:         ticket.Status.Label(),
		AssignedToID:   ticket.AssigneeID,
		Solicitante:    ticket.RequesterName,
		DataAbertura:   ticket.OpenedAt,
		DataAtribuicao: ticket.AssignedAt,
		DataFechamento: ticket.ClosedAt,
		Description:    ticket.Description,
	}
	if ticket.AssigneeID != nil {
		name := ticket.AssigneeName
		resp.AssignedTo = &name
	}
	return resp
}

func kpiResponse(snapshot kpi.Snapshot) dto.KpiResponse {
	counts := make(map[string]int, len(snapshot.Counts))
	for status, count := range snapshot.Counts {
		counts[string(status)] = count
	}
	byPriority := make(map[string]int, len(snapshot.ByPriority))
	for priority, count := range snapshot.ByPriority {
		byPriority[string(priority)] = count
	}
	byAssignee := make([]dto.AssigneeBreakdownResponse, 0, len(snapshot.ByAssignee))
	for _, entry := range snapshot.ByAssignee {
		byAssignee = append(byAssignee, dto.AssigneeBreakdownResponse{
			AssigneeID:   entry.AssigneeID,
			AssigneeName: entry.AssigneeName,
			Open:         entry.Open,
			InProgress:   entry.InProgress,
			Closed:       entry.Closed,
		})
	}
	return dto.KpiResponse{
		Total:                 snapshot.Total,
		Counts:                counts,
		MeanResolutionHours:   snapshot.MeanResolutionHours,
		MedianResolutionHours: snapshot.MedianResolutionHours,
		SlaPercentage:         snapshot.SlaPercentage,
		ByAssignee:            byAssignee,
		ByCategory:            snapshot.ByCategory,
		ByPriority:            byPriority,
		GeneratedAt:           snapshot.GeneratedAt,
	}
}
