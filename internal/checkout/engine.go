package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/zerymnor-storefront/internal/cart"
	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	"github.com/angelmondragon/zerymnor-storefront/pkg/airtable"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/angelmondragon/zerymnor-storefront/pkg/metrics"
	"go.uber.org/multierr"
)

// Line failure reasons reported to metrics.
const (
	ReasonInsufficientStock = "insufficient_stock"
	ReasonMissingField      = "missing_field"
	ReasonDependency        = "dependency"
	ReasonTimeout           = "timeout"
	ReasonNotFound          = "not_found"
)

// RecordStore is the remote surface the engine reads and patches.
type RecordStore interface {
	Get(ctx context.Context, table, id string) (airtable.Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (airtable.Record, error)
}

// StockCache is the catalog surface the engine consults and updates.
type StockCache interface {
	Find(id string) (catalog.Article, bool)
	SetStock(id string, stock int)
}

// CartPruner removes purchased quantities from a cart.
type CartPruner interface {
	RemoveQuantities(ctx context.Context, lines []cart.Line) error
}

// Engine validates and decrements remote stock for a purchase.
type Engine struct {
	store      RecordStore
	cache      StockCache
	table      string
	compensate bool
	logg       *logger.Logger
	metrics    *metrics.StorefrontMetrics
}

// EngineOption configures optional engine behavior.
type EngineOption func(*Engine)

// WithCompensation re-adds stock for succeeded lines when another line fails.
func WithCompensation(enabled bool) EngineOption {
	return func(e *Engine) {
		e.compensate = enabled
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(logg *logger.Logger) EngineOption {
	return func(e *Engine) {
		if logg != nil {
			e.logg = logg
		}
	}
}

// WithEngineMetrics sets the outcome metrics sink.
func WithEngineMetrics(m *metrics.StorefrontMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine builds a reconciliation engine over the articles table.
func NewEngine(store RecordStore, cache StockCache, table string, opts ...EngineOption) *Engine {
	e := &Engine{store: store, cache: cache, table: table, logg: logger.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

type lineResult struct {
	line     cart.Line
	field    string
	newStock int
	err      error
}

// Reconcile checks and decrements remote stock for every line concurrently.
// When all lines succeed the purchased quantities are removed from the cart;
// a failure to prune is logged and the reconciliation still succeeds.
// Succeeded lines are not rolled back on partial failure unless compensation
// is enabled; the returned error combines every failed line.
func (e *Engine) Reconcile(ctx context.Context, pruner CartPruner, lines []cart.Line) error {
	grouped := cart.Group(lines)
	if len(grouped) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase has no items")
	}

	start := time.Now()
	results := make([]lineResult, len(grouped))
	var wg sync.WaitGroup
	for i, line := range grouped {
		wg.Add(1)
		go func(i int, line cart.Line) {
			defer wg.Done()
			results[i] = e.reconcileLine(ctx, line)
		}(i, line)
	}
	wg.Wait()

	var combined error
	var succeeded []lineResult
	for _, res := range results {
		if res.err != nil {
			combined = multierr.Append(combined, res.err)
			continue
		}
		succeeded = append(succeeded, res)
	}

	if combined != nil {
		result := metrics.ResultFailure
		if len(succeeded) > 0 {
			result = metrics.ResultPartial
			if e.compensate {
				e.compensateLines(ctx, succeeded)
			}
		}
		e.metrics.Reconciled(result, time.Since(start))
		e.logg.Error(e.logg.WithFields(ctx, map[string]any{
			"failed_lines":    len(grouped) - len(succeeded),
			"succeeded_lines": len(succeeded),
		}), "checkout.reconcile_failed", combined)
		return combined
	}

	e.metrics.Reconciled(metrics.ResultSuccess, time.Since(start))
	if pruner != nil {
		// Remote stock is committed at this point; a failed prune must not
		// turn the purchase into an error the client would retry.
		if err := pruner.RemoveQuantities(ctx, grouped); err != nil {
			e.logg.Error(e.logg.WithField(ctx, "lines", len(grouped)), "checkout.prune_failed", err)
		}
	}
	return nil
}

func (e *Engine) reconcileLine(ctx context.Context, line cart.Line) lineResult {
	res := lineResult{line: line}
	lineCtx := e.logg.WithArticleID(ctx, line.ArticleID)

	rec, err := e.store.Get(lineCtx, e.table, line.ArticleID)
	if err != nil {
		res.err = e.lineFailure(err, line.ArticleID)
		return res
	}

	field, raw, ok := catalog.LocateField(rec.Fields, catalog.StockFields)
	if !ok {
		e.metrics.LineFailed(ReasonMissingField)
		res.err = pkgerrors.New(pkgerrors.CodeDependency, "stock field missing").
			WithDetails(map[string]string{"article_id": line.ArticleID})
		return res
	}

	available := catalog.ParseInt(raw)
	cached, known := e.cache.Find(line.ArticleID)
	if known && cached.Stock < available {
		available = cached.Stock
	}
	if available < line.Quantity {
		article := cached
		if !known {
			article, _ = catalog.FromRecord(rec, "")
		}
		if article.ID == "" {
			article.ID = line.ArticleID
		}
		e.metrics.LineFailed(ReasonInsufficientStock)
		res.err = catalog.InsufficientStock(article, line.Quantity, available)
		return res
	}

	newStock := available - line.Quantity
	if _, err := e.store.Update(lineCtx, e.table, line.ArticleID, map[string]any{field: newStock}); err != nil {
		res.err = e.lineFailure(err, line.ArticleID)
		return res
	}

	e.cache.SetStock(line.ArticleID, newStock)
	res.field = field
	res.newStock = newStock
	return res
}

// lineFailure normalizes remote errors into dependency errors for the line.
func (e *Engine) lineFailure(err error, articleID string) error {
	details := map[string]string{"article_id": articleID}
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeTimeout):
		e.metrics.LineFailed(ReasonTimeout)
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "stock service timed out").WithDetails(details)
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		e.metrics.LineFailed(ReasonNotFound)
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "article not found").WithDetails(details)
	}
	e.metrics.LineFailed(ReasonDependency)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock update failed").WithDetails(details)
}

// compensateLines adds the decremented quantity back to each succeeded line.
// Best effort: failures are logged and the remaining lines still run.
func (e *Engine) compensateLines(ctx context.Context, succeeded []lineResult) {
	var wg sync.WaitGroup
	for _, res := range succeeded {
		wg.Add(1)
		go func(res lineResult) {
			defer wg.Done()
			lineCtx := e.logg.WithArticleID(ctx, res.line.ArticleID)

			rec, err := e.store.Get(lineCtx, e.table, res.line.ArticleID)
			if err != nil {
				e.logg.Error(lineCtx, "checkout.compensation_failed", err)
				return
			}
			current := res.newStock
			if raw, ok := rec.Fields[res.field]; ok {
				current = catalog.ParseInt(raw)
			}
			restored := current + res.line.Quantity
			if _, err := e.store.Update(lineCtx, e.table, res.line.ArticleID, map[string]any{res.field: restored}); err != nil {
				e.logg.Error(lineCtx, "checkout.compensation_failed", err)
				return
			}
			e.cache.SetStock(res.line.ArticleID, restored)
			e.logg.Info(lineCtx, "checkout.compensated")
		}(res)
	}
	wg.Wait()
}
