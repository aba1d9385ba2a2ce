package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/localmarket/marketplace-backend/internal/deliveries"
	"github.com/localmarket/marketplace-backend/internal/matching"
	"github.com/localmarket/marketplace-backend/internal/notifications"
	pkgAuth "github.com/localmarket/marketplace-backend/pkg/auth"
	"github.com/localmarket/marketplace-backend/pkg/config"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubMatching struct {
	calls int
}

func (s *stubMatching) MatchOrder(ctx context.Context, input matching.MatchInput) (*matching.MatchResponse, error) {
	s.calls++
	return &matching.MatchResponse{OrderID: input.OrderID, Candidates: []matching.CandidateDTO{}}, nil
}

type stubDeliveries struct {
	accepted []uuid.UUID
}

func (s *stubDeliveries) Accept(ctx context.Context, input deliveries.AcceptInput) (*deliveries.JobView, error) {
	s.accepted = append(s.accepted, input.JobID)
	return &deliveries.JobView{ID: input.JobID, Status: "ACCEPTED"}, nil
}

func (s *stubDeliveries) GetJob(ctx context.Context, input deliveries.GetJobInput) (*deliveries.JobView, error) {
	return &deliveries.JobView{ID: input.JobID, Status: "PENDING"}, nil
}

type stubNotifications struct{}

func (stubNotifications) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotifications) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "dev"},
		JWT:       config.JWTConfig{Secret: "secret", Issuer: "localmarket"},
		RateLimit: config.RateLimitConfig{MatchingWindow: time.Minute, MatchingLimit: 5},
	}
}

type routerFixture struct {
	handler    http.Handler
	matching   *stubMatching
	deliveries *stubDeliveries
	token      string
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	m := &stubMatching{}
	d := &stubDeliveries{}
	handler := NewRouter(cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), Dependencies{
		DB:            stubPinger{},
		Gatherer:      reg,
		HTTPMetrics:   metrics.NewHTTPMetrics(reg),
		Matching:      m,
		Deliveries:    d,
		Notifications: stubNotifications{},
	})
	token, err := pkgAuth.Issue(cfg.JWT, uuid.New(), time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return routerFixture{handler: handler, matching: m, deliveries: d, token: token}
}

func (f routerFixture) do(method, path string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutesArePublic(t *testing.T) {
	f := newRouterFixture(t)

	if resp := f.do(http.MethodGet, "/health/live", false); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/health/ready", false); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}
}

func TestAPIRoutesRequireAuth(t *testing.T) {
	f := newRouterFixture(t)
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/orders/" + uuid.NewString() + "/couriers"},
		{http.MethodPost, "/api/v1/courier/jobs/" + uuid.NewString() + "/accept"},
		{http.MethodGet, "/api/v1/courier/jobs/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/notifications"},
	}
	for _, p := range paths {
		if resp := f.do(p.method, p.path, false); resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", p.method, p.path, resp.Code)
		}
	}
	if f.matching.calls != 0 || len(f.deliveries.accepted) != 0 {
		t.Fatalf("services must not be reached without auth")
	}
}

func TestDispatchRoutes(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(http.MethodGet, "/api/v1/orders/"+uuid.NewString()+"/couriers?buyerLat=18.2&buyerLng=-66.5", true)
	if resp.Code != http.StatusOK {
		t.Fatalf("matching: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if f.matching.calls != 1 {
		t.Fatalf("expected matching service called once got %d", f.matching.calls)
	}

	jobID := uuid.New()
	resp = f.do(http.MethodPost, "/api/v1/courier/jobs/"+jobID.String()+"/accept", true)
	if resp.Code != http.StatusOK {
		t.Fatalf("accept: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(f.deliveries.accepted) != 1 || f.deliveries.accepted[0] != jobID {
		t.Fatalf("unexpected accepted jobs %v", f.deliveries.accepted)
	}

	resp = f.do(http.MethodGet, "/api/v1/courier/jobs/"+jobID.String(), true)
	if resp.Code != http.StatusOK {
		t.Fatalf("job detail: expected 200 got %d", resp.Code)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	f := newRouterFixture(t)
	f.do(http.MethodGet, "/health/live", false)

	resp := f.do(http.MethodGet, "/metrics", false)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output:\n%s", resp.Body.String())
	}
}
