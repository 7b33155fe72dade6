package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/api/http/handlers"
	"github.com/spec-kit/sow-service/internal/auth"
	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/observability"
	"github.com/spec-kit/sow-service/internal/repository/memstore"
	"github.com/spec-kit/sow-service/internal/service"
)

type testServer struct {
	app        *fiber.App
	store      *memstore.Store
	tokens     *auth.TokenManager
	landlord   domain.User
	tenant     domain.User
	worker     domain.User
	contractor domain.Contractor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	scopes := service.NewScopeOfWorkService(service.ScopeOfWorkDependencies{
		Store:      store,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Metrics:    metrics,
		Logger:     logger,
	})
	tokens := auth.NewTokenManager("test-secret", 15)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("sow-service", "test", map[string]handlers.Pinger{"store": store}),
		ScopesOfWork:   handlers.NewScopesOfWorkHandler(scopes),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
		Metrics:        metrics,
	})

	contractor := store.PutContractor(domain.Contractor{CompanyName: "Fixit Ltd", Active: true})
	return &testServer{
		app:        app,
		store:      store,
		tokens:     tokens,
		landlord:   store.PutUser(domain.User{Role: domain.RoleLandlord, Status: domain.UserStatusActive}),
		tenant:     store.PutUser(domain.User{Role: domain.RoleTenant, Status: domain.UserStatusActive}),
		worker:     store.PutUser(domain.User{Role: domain.RoleContractor, ContractorID: &contractor.ID, Status: domain.UserStatusActive}),
		contractor: contractor,
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, as *domain.User, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		token, _, err := s.tokens.GenerateToken(as.ID, as.Role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

type sowBody struct {
	ID             string              `json:"id"`
	Number         string              `json:"number"`
	Status         domain.TicketStatus `json:"status"`
	AssignedUserID *string             `json:"assigned_user_id"`
	Contractor     *struct {
		ID string `json:"id"`
	} `json:"contractor"`
	Tickets []struct {
		ID     string              `json:"id"`
		Status domain.TicketStatus `json:"status"`
	} `json:"tickets"`
}

func decodeSOW(t *testing.T, env envelope) sowBody {
	t.Helper()
	var out sowBody
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestScopeOfWorkEndpoints(t *testing.T) {
	s := newTestServer(t)
	t1 := s.store.PutTicket(domain.MaintenanceTicket{Title: "boiler", Status: domain.TicketStatusOpen})
	t2 := s.store.PutTicket(domain.MaintenanceTicket{Title: "window", Status: domain.TicketStatusInReview})

	status, env := s.do(t, nethttp.MethodPost, "/scopes-of-work", &s.landlord, map[string]any{"ticket_ids": []string{t1.ID, t2.ID}})
	require.Equal(t, nethttp.StatusCreated, status)
	created := decodeSOW(t, env)
	assert.Regexp(t, `^SOW\d{4}-000001$`, created.Number)
	assert.Len(t, created.Tickets, 2)
	base := "/scopes-of-work/" + created.ID

	status, env = s.do(t, nethttp.MethodPost, base+"/assign-contractor", &s.landlord, map[string]any{"contractor_id": s.contractor.ID})
	require.Equal(t, nethttp.StatusOK, status)
	require.NotNil(t, decodeSOW(t, env).Contractor)

	status, env = s.do(t, nethttp.MethodPost, base+"/accept", &s.worker, nil)
	require.Equal(t, nethttp.StatusOK, status)
	accepted := decodeSOW(t, env)
	assert.Equal(t, domain.TicketStatusInProgress, accepted.Status)
	require.NotNil(t, accepted.AssignedUserID)
	assert.Equal(t, s.worker.ID, *accepted.AssignedUserID, "accept defaults to the caller")

	status, env = s.do(t, nethttp.MethodPost, base+"/close", &s.landlord, map[string]any{"notes": "done"})
	require.Equal(t, nethttp.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "tickets", env.Error.Details["gate"])

	status, env = s.do(t, nethttp.MethodGet, "/scopes-of-work?status=in_progress", &s.tenant, nil)
	require.Equal(t, nethttp.StatusOK, status)
	var page struct {
		Items []sowBody `json:"items"`
		Total int       `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Total)

	status, env = s.do(t, nethttp.MethodGet, "/scopes-of-work?parent_id=not-a-uuid", &s.tenant, nil)
	require.Equal(t, nethttp.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, _ = s.do(t, nethttp.MethodGet, base+"/history", &s.tenant, nil)
	assert.Equal(t, nethttp.StatusOK, status)

	status, env = s.do(t, nethttp.MethodDelete, base+"/tickets/"+t2.ID, &s.landlord, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, decodeSOW(t, env).Tickets, 1)

	status, _ = s.do(t, nethttp.MethodDelete, base, &s.landlord, nil)
	assert.Equal(t, nethttp.StatusNoContent, status)

	status, env = s.do(t, nethttp.MethodGet, base, &s.tenant, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestScopeOfWorkConflictIsReported(t *testing.T) {
	s := newTestServer(t)
	ticket := s.store.PutTicket(domain.MaintenanceTicket{Status: domain.TicketStatusOpen})

	status, _ := s.do(t, nethttp.MethodPost, "/scopes-of-work", &s.landlord, map[string]any{"ticket_ids": []string{ticket.ID}})
	require.Equal(t, nethttp.StatusCreated, status)

	status, env := s.do(t, nethttp.MethodPost, "/scopes-of-work", &s.landlord, map[string]any{"ticket_ids": []string{ticket.ID}})
	assert.Equal(t, nethttp.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Equal(t, ticket.ID, env.Error.Details["ticket_id"])
}

func TestScopeOfWorkRoleGates(t *testing.T) {
	s := newTestServer(t)
	ticket := s.store.PutTicket(domain.MaintenanceTicket{Status: domain.TicketStatusOpen})
	body := map[string]any{"ticket_ids": []string{ticket.ID}}

	status, env := s.do(t, nethttp.MethodPost, "/scopes-of-work", nil, body)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = s.do(t, nethttp.MethodPost, "/scopes-of-work", &s.tenant, body)
	assert.Equal(t, nethttp.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = s.do(t, nethttp.MethodPost, "/scopes-of-work", &s.worker, body)
	assert.Equal(t, nethttp.StatusForbidden, status, "contractors cannot create")

	status, env = s.do(t, nethttp.MethodPost, "/scopes-of-work", &s.landlord, body)
	require.Equal(t, nethttp.StatusCreated, status)
	id := decodeSOW(t, env).ID

	status, _ = s.do(t, nethttp.MethodPost, "/scopes-of-work/"+id+"/review", &s.tenant, nil)
	assert.Equal(t, nethttp.StatusForbidden, status)
	status, _ = s.do(t, nethttp.MethodPost, "/scopes-of-work/"+id+"/review", &s.worker, nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestInvalidPayload(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(nethttp.MethodPost, "/scopes-of-work", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	token, _, err := s.tokens.GenerateToken(s.landlord.ID, s.landlord.Role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)

	status, env := s.do(t, nethttp.MethodPost, "/scopes-of-work", &s.landlord, map[string]any{"ticket_ids": []string{}})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, nethttp.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, nethttp.StatusOK, status)
	status, _ = s.do(t, nethttp.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, nethttp.StatusOK, status)

	resp, err := s.app.Test(httptest.NewRequest(nethttp.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, nethttp.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
