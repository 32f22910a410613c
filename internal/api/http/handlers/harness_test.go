package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	httpapi "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

const (
	testCookieName = "helpdesk_session"
	testAdminEmail = "admin@x.com"
	testSessionTTL = 7 * 24 * time.Hour
)

// env wires the full HTTP surface against in-memory storage so requests
// exercise middleware, handlers, guards, and services end to end.
type env struct {
	app     *fiber.App
	users   *memUserRepo
	tickets *memTicketRepo
	revoked *memRevocations
	metrics *observability.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()

	logger := zap.NewNop()
	users := newMemUserRepo()
	tickets := newMemTicketRepo()
	comments := &memCommentRepo{}
	revoked := &memRevocations{ids: make(map[string]struct{})}
	bus := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	observability.RegisterEventSinks(bus, logger, metrics)

	tokens := auth.NewTokenCodec("handler-test-secret", testSessionTTL)
	cookies := auth.NewSessionCookies(testCookieName, testSessionTTL, false)
	resolver := auth.NewResolver(cookies, tokens, users, revoked, bus, logger)

	sessionCfg := config.SessionConfig{
		Secret:     "handler-test-secret",
		TTLDays:    7,
		CookieName: testCookieName,
		BcryptCost: bcrypt.MinCost,
		AdminEmail: testAdminEmail,
	}
	authSvc := service.NewAuthService(sessionCfg, users, tokens, revoked, bus)
	ticketSvc := service.NewTicketService(tickets, comments, bus)
	userSvc := service.NewUserService(users, tickets, bcrypt.MinCost)

	app := fiber.New()
	httpapi.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	httpapi.RegisterRoutes(app, httpapi.RouteConfig{
		Health:  handlers.NewHealthHandler("helpdesk", "test", nil, nil),
		Auth:    handlers.NewAuthHandler(authSvc, cookies, resolver, bus),
		Tickets: handlers.NewTicketsHandler(ticketSvc, resolver, bus),
		Users:   handlers.NewUsersHandler(userSvc, resolver, bus),
	})

	return &env{app: app, users: users, tickets: tickets, revoked: revoked, metrics: metrics}
}

func (e *env) do(t *testing.T, method, path, session string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: session})
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// register creates an account over HTTP and returns the response body
// plus the session token from the Set-Cookie header.
func (e *env) register(t *testing.T, name, email, password string) (dto.CurrentUserResponse, string) {
	t.Helper()

	resp := e.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user dto.CurrentUserResponse
	decodeData(t, resp, &user)
	return user, sessionCookie(t, resp).Value
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == testCookieName {
			return cookie
		}
	}
	t.Fatalf("no %q cookie in response", testCookieName)
	return nil
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", raw)
	require.NoError(t, json.Unmarshal(envelope.Data, out), "body: %s", raw)
}

func errorBody(t *testing.T, resp *http.Response) (code, message string) {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code, envelope.Error.Message
}

// In-memory repository fakes. The ticket fake counts reads and writes so
// tests can prove denied requests never touch ticket storage.

type memUserRepo struct {
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) List(_ context.Context) ([]domain.User, error) {
	result := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, *user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type memTicketRepo struct {
	tickets    map[string]*domain.Ticket
	readCalls  int
	writeCalls int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.writeCalls++
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = ticket
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.writeCalls++
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = ticket
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.readCalls++
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, repository.TicketFilter{UserID: &userID, Limit: limit, Offset: offset})
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.readCalls++
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.UserID != nil && ticket.UserID != *filter.UserID {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(*filter.SearchTerm)
			if !strings.Contains(strings.ToLower(ticket.Subject), term) &&
				!strings.Contains(strings.ToLower(ticket.Description), term) {
				continue
			}
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *memTicketRepo) StatsByUser(_ context.Context, userID string) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int64),
		ByPriority: make(map[domain.TicketPriority]int64),
	}
	for _, ticket := range r.tickets {
		if ticket.UserID != userID {
			continue
		}
		stats.Total++
		stats.ByStatus[ticket.Status]++
		stats.ByPriority[ticket.Priority]++
	}
	return stats, nil
}

type memCommentRepo struct {
	comments []*domain.Comment
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, comment)
	return nil
}

// ListByTicket returns newest first, matching the SQL ordering.
func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	var result []domain.Comment
	for i := len(r.comments) - 1; i >= 0; i-- {
		if r.comments[i].TicketID == ticketID {
			result = append(result, *r.comments[i])
		}
	}
	return result, nil
}

type memRevocations struct {
	ids map[string]struct{}
}

func (r *memRevocations) Revoke(_ context.Context, tokenID string, _ time.Time) error {
	r.ids[tokenID] = struct{}{}
	return nil
}

func (r *memRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := r.ids[tokenID]
	return ok, nil
}
