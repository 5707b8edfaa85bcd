package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/zerymnor-storefront/api/controllers"
	"github.com/angelmondragon/zerymnor-storefront/api/middleware"
	"github.com/angelmondragon/zerymnor-storefront/pkg/config"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/angelmondragon/zerymnor-storefront/pkg/redis"
)

// CatalogCache is the cached catalog as seen by the HTTP layer.
type CatalogCache interface {
	controllers.ArticleReader
	controllers.CatalogRefresher
}

// redisStore covers idempotency and rate limiting; both are skipped when it is nil.
type redisStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	readiness map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
	catalogCache CatalogCache,
	sessions controllers.CartSessions,
	checkoutService controllers.CheckoutRunner,
	articleAdmin controllers.ArticleAdmin,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Session(logg),
	)

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var store redisStore
	if redisClient != nil {
		store = redisClient
	}

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutSessionLimit,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/articles", controllers.ArticleList(catalogCache, logg))
		r.Get("/articles/{articleId}", controllers.ArticleDetail(catalogCache, logg))
		r.Post("/catalog/refresh", controllers.CatalogRefresh(catalogCache, catalogCache, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(sessions, catalogCache, logg))
			r.Get("/total", controllers.CartTotal(sessions, logg))
			r.Post("/items", controllers.CartAddItem(sessions, catalogCache, logg))
			r.Put("/items/{articleId}", controllers.CartSetQuantity(sessions, catalogCache, logg))
			r.Delete("/items/{articleId}", controllers.CartRemoveItem(sessions, catalogCache, logg))
		})

		r.With(
			middleware.Idempotency(store, logg),
			middleware.RateLimit(checkoutPolicy, store, logg),
		).Post("/checkout", controllers.Checkout(checkoutService, sessions, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Get("/articles", controllers.AdminListArticles(articleAdmin, logg))
		r.With(middleware.Idempotency(store, logg)).Post("/articles", controllers.AdminCreateArticle(articleAdmin, logg))
		r.Get("/articles/{articleId}", controllers.AdminGetArticle(articleAdmin, logg))
		r.Patch("/articles/{articleId}", controllers.AdminUpdateArticle(articleAdmin, logg))
		r.Delete("/articles/{articleId}", controllers.AdminDeleteArticle(articleAdmin, logg))
	})

	return r
}
