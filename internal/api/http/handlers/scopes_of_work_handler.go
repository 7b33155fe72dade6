package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sow-service/internal/api/dto"
	"github.com/spec-kit/sow-service/internal/auth"
	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/service"
)

// ScopesOfWorkHandler exposes scope-of-work lifecycle endpoints.
type ScopesOfWorkHandler struct {
	scopes *service.ScopeOfWorkService
}

// NewScopesOfWorkHandler constructs handler.
func NewScopesOfWorkHandler(scopes *service.ScopeOfWorkService) *ScopesOfWorkHandler {
	return &ScopesOfWorkHandler{scopes: scopes}
}

// Create POST /scopes-of-work.
func (h *ScopesOfWorkHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateScopeOfWorkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if len(req.TicketIDs) == 0 {
		return fiber.NewError(http.StatusBadRequest, "ticket_ids is required")
	}

	view, err := h.scopes.Create(c.UserContext(), actorFrom(c), service.CreateInput{
		TicketIDs: req.TicketIDs,
		ParentID:  req.ParentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// List GET /scopes-of-work.
func (h *ScopesOfWorkHandler) List(c *fiber.Ctx) error {
	page, err := h.scopes.List(c.UserContext(), parseListQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.ScopeOfWorkResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, scopeOfWorkResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": dto.ScopeOfWorkPage{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}})
}

// Get GET /scopes-of-work/:id.
func (h *ScopesOfWorkHandler) Get(c *fiber.Ctx) error {
	view, err := h.scopes.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// Delete DELETE /scopes-of-work/:id.
func (h *ScopesOfWorkHandler) Delete(c *fiber.Ctx) error {
	if err := h.scopes.Remove(c.UserContext(), actorFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AssignContractor POST /scopes-of-work/:id/assign-contractor.
func (h *ScopesOfWorkHandler) AssignContractor(c *fiber.Ctx) error {
	var req dto.AssignContractorRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.ContractorID) == "" {
		return fiber.NewError(http.StatusBadRequest, "contractor_id is required")
	}

	view, err := h.scopes.AssignContractor(c.UserContext(), actorFrom(c), c.Params("id"), req.ContractorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// AddTicket POST /scopes-of-work/:id/tickets.
func (h *ScopesOfWorkHandler) AddTicket(c *fiber.Ctx) error {
	var req dto.AddTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.TicketID) == "" {
		return fiber.NewError(http.StatusBadRequest, "ticket_id is required")
	}

	view, err := h.scopes.AddTicket(c.UserContext(), actorFrom(c), c.Params("id"), req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// RemoveTicket DELETE /scopes-of-work/:id/tickets/:ticketId.
func (h *ScopesOfWorkHandler) RemoveTicket(c *fiber.Ctx) error {
	view, err := h.scopes.RemoveTicket(c.UserContext(), actorFrom(c), c.Params("id"), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// Accept POST /scopes-of-work/:id/accept.
func (h *ScopesOfWorkHandler) Accept(c *fiber.Ctx) error {
	var req dto.AcceptRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	actor := actorFrom(c)
	userID := actor.UserID
	if req.UserID != nil && strings.TrimSpace(*req.UserID) != "" {
		userID = *req.UserID
	}

	view, err := h.scopes.Accept(c.UserContext(), actor, c.Params("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// Refuse POST /scopes-of-work/:id/refuse.
func (h *ScopesOfWorkHandler) Refuse(c *fiber.Ctx) error {
	var req dto.RefuseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	view, err := h.scopes.Refuse(c.UserContext(), actorFrom(c), c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// Review POST /scopes-of-work/:id/review.
func (h *ScopesOfWorkHandler) Review(c *fiber.Ctx) error {
	view, err := h.scopes.MarkInReview(c.UserContext(), actorFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// Close POST /scopes-of-work/:id/close.
func (h *ScopesOfWorkHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	view, err := h.scopes.Close(c.UserContext(), actorFrom(c), c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scopeOfWorkResponse(view)})
}

// History GET /scopes-of-work/:id/history.
func (h *ScopesOfWorkHandler) History(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 100)
	offset := parseInt(c.Query("offset"), 0)

	entries, err := h.scopes.History(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// Invoices GET /scopes-of-work/:id/invoices.
func (h *ScopesOfWorkHandler) Invoices(c *fiber.Ctx) error {
	invoices, err := h.scopes.Invoices(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := make([]dto.InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		resp = append(resp, dto.InvoiceResponse{
			ID:          invoice.ID,
			Number:      invoice.Number,
			Status:      invoice.Status,
			AmountCents: invoice.AmountCents,
			Currency:    invoice.Currency,
			IssuedAt:    invoice.IssuedAt,
			CreatedAt:   invoice.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Threads GET /scopes-of-work/:id/threads.
func (h *ScopesOfWorkHandler) Threads(c *fiber.Ctx) error {
	threads, err := h.scopes.Threads(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := make([]dto.ThreadResponse, 0, len(threads))
	for _, thread := range threads {
		resp = append(resp, dto.ThreadResponse{
			ID:            thread.ID,
			Subject:       thread.Subject,
			MessageCount:  thread.MessageCount,
			LastMessageAt: thread.LastMessageAt,
			CreatedAt:     thread.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

func actorFrom(c *fiber.Ctx) service.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Actor{}
	}
	return service.Actor{UserID: principal.UserID(), Role: principal.Role}
}

func parseListQuery(c *fiber.Ctx) service.ListInput {
	input := service.ListInput{
		Sort:     c.Query("sort"),
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), service.DefaultPageSize),
		RootOnly: parseBool(c.Query("root_only")),
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			if s = strings.TrimSpace(s); s != "" {
				input.Statuses = append(input.Statuses, domain.TicketStatus(strings.ToUpper(s)))
			}
		}
	}
	if parentID := c.Query("parent_id"); parentID != "" {
		input.ParentID = &parentID
	}
	if contractorID := c.Query("contractor_id"); contractorID != "" {
		input.ContractorID = &contractorID
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		input.Search = &search
	}
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func parseBool(val string) bool {
	parsed, err := strconv.ParseBool(val)
	return err == nil && parsed
}
