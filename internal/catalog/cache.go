package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/zerymnor-storefront/pkg/airtable"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/angelmondragon/zerymnor-storefront/pkg/metrics"
)

// RecordLister is the remote read surface the cache needs.
type RecordLister interface {
	List(ctx context.Context, table string) (airtable.ListResult, error)
}

// Cache is the process-wide snapshot of the articles table.
type Cache struct {
	source      RecordLister
	table       string
	placeholder string
	logg        *logger.Logger
	metrics     *metrics.StorefrontMetrics

	mu          sync.RWMutex
	order       []string
	byID        map[string]Article
	refreshedAt time.Time
}

// CacheOption configures optional cache behavior.
type CacheOption func(*Cache)

// WithLogger sets the logger used for refresh failures.
func WithLogger(logg *logger.Logger) CacheOption {
	return func(c *Cache) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithMetrics sets the refresh metrics sink.
func WithMetrics(m *metrics.StorefrontMetrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithPlaceholderImage overrides the image used when a record has none.
func WithPlaceholderImage(url string) CacheOption {
	return func(c *Cache) {
		if url != "" {
			c.placeholder = url
		}
	}
}

// NewCache builds an empty cache for the given table.
func NewCache(source RecordLister, table string, opts ...CacheOption) *Cache {
	c := &Cache{
		source:      source,
		table:       table,
		placeholder: DefaultPlaceholderImage,
		logg:        logger.Nop(),
		byID:        map[string]Article{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Refresh replaces the snapshot with one list call. On failure the previous
// snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.source == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "catalog source not configured")
	}
	result, err := c.source.List(ctx, c.table)
	if err != nil {
		c.logg.Error(ctx, "catalog.refresh_failed", err)
		c.metrics.CatalogRefreshed(false, 0)
		return err
	}
	if result.Offset != "" {
		warnCtx := c.logg.WithField(ctx, "offset", result.Offset)
		c.logg.Warn(warnCtx, "catalog.refresh_truncated")
	}

	order := make([]string, 0, len(result.Records))
	byID := make(map[string]Article, len(result.Records))
	for _, rec := range result.Records {
		article, ok := FromRecord(rec, c.placeholder)
		if !ok {
			continue
		}
		if _, dup := byID[article.ID]; !dup {
			order = append(order, article.ID)
		}
		byID[article.ID] = article
	}

	c.mu.Lock()
	c.order = order
	c.byID = byID
	c.refreshedAt = time.Now().UTC()
	c.mu.Unlock()

	c.metrics.CatalogRefreshed(true, len(order))
	infoCtx := c.logg.WithField(ctx, "articles", len(order))
	c.logg.Info(infoCtx, "catalog.refreshed")
	return nil
}

// Find returns the cached article for id.
func (c *Cache) Find(id string) (Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	article, ok := c.byID[id]
	return article, ok
}

// List returns the snapshot in remote order.
func (c *Cache) List() []Article {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Article, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// SetStock applies an optimistic stock update. Unknown ids are ignored.
func (c *Cache) SetStock(id string, stock int) {
	if stock < 0 {
		stock = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if article, ok := c.byID[id]; ok {
		article.Stock = stock
		c.byID[id] = article
	}
}

// RefreshedAt reports when the last successful refresh completed.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
