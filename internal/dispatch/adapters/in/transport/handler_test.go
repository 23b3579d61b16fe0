package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawfect/internal/dispatch/application/ports/in"
	"pawfect/internal/dispatch/domain"
	"pawfect/internal/shared/auth"
	"pawfect/internal/shared/config"
	"pawfect/internal/shared/logger"
)

type stubAccept struct {
	out *in.AcceptOrderOutput
	err error
}

func (s *stubAccept) Execute(context.Context, in.AcceptOrderInput) (*in.AcceptOrderOutput, error) {
	return s.out, s.err
}

type stubTransition struct {
	order *domain.Order
	err   error

	gotActor string
}

func (s *stubTransition) Execute(_ context.Context, input in.TransitionOrderInput) (*domain.Order, error) {
	s.gotActor = input.Actor
	return s.order, s.err
}

type stubList struct{ orders []domain.OrderSummary }

func (s *stubList) Execute(context.Context, in.ListAvailableOrdersInput) ([]domain.OrderSummary, error) {
	return s.orders, nil
}

type stubManualAssign struct {
	out *in.ManualAssignOutput
	err error
}

func (s *stubManualAssign) Execute(context.Context, in.ManualAssignInput) (*in.ManualAssignOutput, error) {
	return s.out, s.err
}

type stubUpdateStatus struct {
	out *in.UpdateDeliveryStatusOutput
	err error
}

func (s *stubUpdateStatus) Execute(context.Context, in.UpdateDeliveryStatusInput) (*in.UpdateDeliveryStatusOutput, error) {
	return s.out, s.err
}

type stubDeliveries struct{}

func (stubDeliveries) Current(context.Context, string) (*domain.Delivery, error) {
	return nil, domain.ErrDeliveryNotFound
}
func (stubDeliveries) History(context.Context, string, int) ([]domain.Delivery, error) {
	return nil, nil
}

type stubHeartbeat struct{ calls int }

func (s *stubHeartbeat) Execute(context.Context, in.HeartbeatInput) error {
	s.calls++
	return nil
}

type stubAvailability struct{}

func (stubAvailability) Execute(context.Context, in.SetAvailabilityInput) error { return nil }

type testEnv struct {
	handler    http.Handler
	jwt        *auth.JWTService
	accept     *stubAccept
	transition *stubTransition
	heartbeat  *stubHeartbeat
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	jwtService := auth.NewJWTService(config.JWTConfig{Secret: "test_secret", ExpiryMinutes: 5})
	env := &testEnv{
		jwt:        jwtService,
		accept:     &stubAccept{out: &in.AcceptOrderOutput{Accepted: true}},
		transition: &stubTransition{order: &domain.Order{ID: "o1", Status: domain.OrderStatusConfirmed}},
		heartbeat:  &stubHeartbeat{},
	}
	h := NewHandler(
		env.accept,
		&stubManualAssign{out: &in.ManualAssignOutput{}},
		env.transition,
		&stubList{},
		&stubUpdateStatus{out: &in.UpdateDeliveryStatusOutput{}},
		stubDeliveries{},
		env.heartbeat,
		stubAvailability{},
		jwtService,
		logger.NewLoggerWithWriter("transport-test", io.Discard),
	)
	env.handler = h.Routes("/ws", func(w http.ResponseWriter, r *http.Request) {})
	return env
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID, userID+"@pawfect.kz", role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/orders/available", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/orders/available", "garbage-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)

	// A buyer cannot hit rider endpoints.
	buyer := env.token(t, "b1", RoleBuyer)
	rec := env.request(t, http.MethodGet, "/api/v1/orders/available", buyer, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A rider cannot assign manually.
	rider := env.token(t, "r1", RoleRider)
	rec = env.request(t, http.MethodPost, "/api/v1/orders/o1/assign", rider, `{"rider_id":"r2"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin passes everywhere.
	admin := env.token(t, "a1", RoleAdmin)
	rec = env.request(t, http.MethodGet, "/api/v1/orders/available", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAcceptOrderStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	rider := env.token(t, "r1", RoleRider)

	rec := env.request(t, http.MethodPost, "/api/v1/orders/o1/accept", rider, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Losing the race maps to 409, not 500.
	env.accept.out = &in.AcceptOrderOutput{Accepted: false, Reason: in.ReasonAlreadyTaken}
	rec = env.request(t, http.MethodPost, "/api/v1/orders/o1/accept", rider, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp acceptOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, in.ReasonAlreadyTaken, resp.Reason)

	env.accept.out = &in.AcceptOrderOutput{Accepted: false, Reason: in.ReasonNotFound}
	rec = env.request(t, http.MethodPost, "/api/v1/orders/o1/accept", rider, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionRestoreAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	seller := env.token(t, "s1", RoleSeller)
	rec := env.request(t, http.MethodPatch, "/api/v1/orders/o1/status", seller, `{"status":"pending"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := env.token(t, "a1", RoleAdmin)
	rec = env.request(t, http.MethodPatch, "/api/v1/orders/o1/status", admin, `{"status":"pending"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", env.transition.gotActor)
}

func TestTransitionErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	seller := env.token(t, "s1", RoleSeller)

	env.transition.err = domain.ErrInvalidTransition
	env.transition.order = nil
	rec := env.request(t, http.MethodPatch, "/api/v1/orders/o1/status", seller, `{"status":"delivered"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env.transition.err = domain.ErrOrderNotFound
	rec = env.request(t, http.MethodPatch, "/api/v1/orders/o1/status", seller, `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeartbeatEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rider := env.token(t, "r1", RoleRider)

	rec := env.request(t, http.MethodPost, "/api/v1/riders/heartbeat", rider, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, env.heartbeat.calls)

	rec = env.request(t, http.MethodPost, "/api/v1/riders/heartbeat", rider, `{"location":{"lat":43.2,"lng":76.9}}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, env.heartbeat.calls)
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestCurrentDeliveryNotFound(t *testing.T) {
	env := newTestEnv(t)
	rider := env.token(t, "r1", RoleRider)
	rec := env.request(t, http.MethodGet, "/api/v1/deliveries/current", rider, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
