package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/zerymnor-storefront/api/controllers"
	"github.com/angelmondragon/zerymnor-storefront/api/middleware"
	"github.com/angelmondragon/zerymnor-storefront/internal/cart"
	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	"github.com/angelmondragon/zerymnor-storefront/internal/checkout"
	"github.com/angelmondragon/zerymnor-storefront/internal/orders"
	"github.com/angelmondragon/zerymnor-storefront/pkg/config"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/angelmondragon/zerymnor-storefront/pkg/metrics"
)

type stubCache struct {
	articles []catalog.Article
}

func (s stubCache) List() []catalog.Article { return s.articles }

func (s stubCache) Find(id string) (catalog.Article, bool) {
	for _, a := range s.articles {
		if a.ID == id {
			return a, true
		}
	}
	return catalog.Article{}, false
}

func (stubCache) Refresh(context.Context) error { return nil }

func (stubCache) RefreshedAt() time.Time { return time.Time{} }

type stubCheckout struct {
	calls int
}

func (s *stubCheckout) Checkout(ctx context.Context, store checkout.CartStore, buyer orders.Buyer, items []checkout.BuyNowItem) (*checkout.Receipt, error) {
	s.calls++
	return &checkout.Receipt{OrderID: "rec1", Total: decimal.Zero}, nil
}

type stubAdmin struct{}

func (stubAdmin) List(context.Context) ([]catalog.Article, error) { return nil, nil }

func (stubAdmin) Get(ctx context.Context, id string) (catalog.Article, error) {
	return catalog.Article{ID: id}, nil
}

func (stubAdmin) Create(ctx context.Context, in catalog.ArticleInput) (catalog.Article, error) {
	return catalog.Article{ID: "recNew", Title: in.Title}, nil
}

func (stubAdmin) Update(ctx context.Context, id string, in catalog.ArticleInput) (catalog.Article, error) {
	return catalog.Article{ID: id}, nil
}

func (stubAdmin) Delete(context.Context, string) error { return nil }

type routerFixture struct {
	handler  http.Handler
	checkout *stubCheckout
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		RateLimit: config.RateLimitConfig{
			CheckoutWindow:       time.Minute,
			CheckoutSessionLimit: 5,
		},
	}
	cache := stubCache{articles: []catalog.Article{{ID: "A", Title: "Lamp", Price: decimal.NewFromInt(10), Stock: 3}}}
	storage := cart.NewMemoryStorage()
	reg := prometheus.NewRegistry()
	m := metrics.NewStorefrontMetrics(reg)
	m.OrderRecorded(true)
	svc := &stubCheckout{}

	handler := NewRouter(
		cfg,
		logger.Nop(),
		nil,
		map[string]controllers.Pinger{"cart": storage},
		reg,
		cache,
		cart.NewSessions(storage, cache),
		svc,
		stubAdmin{},
	)
	return routerFixture{handler: handler, checkout: svc}
}

func (f routerFixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	f := newRouterFixture(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		if resp := f.do(http.MethodGet, path, "", nil); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(http.MethodGet, "/metrics", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "storefront_orders_recorded_total") {
		t.Fatalf("expected storefront metrics in output")
	}
}

func TestSessionHeaderIssued(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(http.MethodGet, "/api/v1/cart", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get(middleware.SessionHeader) == "" {
		t.Fatalf("expected a session id to be issued")
	}
}

func TestCartPersistsAcrossRequestsForSession(t *testing.T) {
	f := newRouterFixture(t)
	session := "7b0e8c52-2a4b-4e1f-9d3c-5a6b7c8d9e0f"
	headers := map[string]string{middleware.SessionHeader: session}

	resp := f.do(http.MethodPost, "/api/v1/cart/items", `{"id":"A"}`, headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("add: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	resp = f.do(http.MethodGet, "/api/v1/cart/total", "", headers)
	if !strings.Contains(resp.Body.String(), `"total":"10"`) {
		t.Fatalf("unexpected total body %s", resp.Body.String())
	}

	other := f.do(http.MethodGet, "/api/v1/cart/total", "", nil)
	if !strings.Contains(other.Body.String(), `"total":"0"`) {
		t.Fatalf("fresh session should have an empty cart, got %s", other.Body.String())
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"buyer":{"name":"Ana"}}`

	resp := f.do(http.MethodPost, "/api/v1/checkout", body, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if f.checkout.calls != 0 {
		t.Fatalf("checkout must not run without a key")
	}

	resp = f.do(http.MethodPost, "/api/v1/checkout", body, map[string]string{middleware.IdempotencyKeyHeader: "k1"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if f.checkout.calls != 1 {
		t.Fatalf("expected one checkout call, got %d", f.checkout.calls)
	}
}

func TestAdminCreateRequiresIdempotencyKey(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(http.MethodPost, "/api/admin/v1/articles", `{"title":"Vase"}`, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	resp = f.do(http.MethodPost, "/api/admin/v1/articles", `{"title":"Vase"}`, map[string]string{middleware.IdempotencyKeyHeader: "k2"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}

func TestArticleRoutes(t *testing.T) {
	f := newRouterFixture(t)
	if resp := f.do(http.MethodGet, "/api/v1/articles/A", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/articles/missing", "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
