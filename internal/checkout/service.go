package checkout

import (
	"context"
	"strings"

	"github.com/angelmondragon/zerymnor-storefront/internal/cart"
	"github.com/angelmondragon/zerymnor-storefront/internal/orders"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

// CartStore is the per-session cart surface used by checkout.
type CartStore interface {
	CartPruner
	Get(ctx context.Context) ([]cart.Line, error)
}

type recorder interface {
	Record(ctx context.Context, buyer orders.Buyer, summary orders.Summary) (string, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, pruner CartPruner, lines []cart.Line) error
}

// BuyNowItem is an ad-hoc purchase line whose quantity arrives as raw input.
type BuyNowItem struct {
	ArticleID string
	Quantity  string
}

// Receipt describes a completed purchase.
type Receipt struct {
	OrderID string          `json:"order_id"`
	Items   []cart.Line     `json:"items"`
	Summary string          `json:"summary"`
	Total   decimal.Decimal `json:"total"`
}

// Service runs reconciliation followed by order recording.
type Service struct {
	engine   reconciler
	catalog  StockCache
	recorder recorder
	logg     *logger.Logger
}

// NewService wires the checkout flow.
func NewService(engine reconciler, cat StockCache, rec recorder, logg *logger.Logger) (*Service, error) {
	if engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation engine required")
	}
	if cat == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog required")
	}
	if rec == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order recorder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{engine: engine, catalog: cat, recorder: rec, logg: logg}, nil
}

// Checkout buys the whole grouped cart when items is nil, or the given
// buy-now items otherwise. The order is recorded only after reconciliation
// succeeds.
func (s *Service) Checkout(ctx context.Context, store CartStore, buyer orders.Buyer, items []BuyNowItem) (*Receipt, error) {
	buyer = buyer.Normalize()
	if err := buyer.Validate(); err != nil {
		return nil, err
	}

	lines, err := s.purchaseLines(ctx, store, items)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Reconcile(ctx, store, lines); err != nil {
		return nil, err
	}

	grouped := cart.Group(lines)
	summary := orders.BuildSummary(grouped, s.catalog)
	orderID, err := s.recorder.Record(ctx, buyer, summary)
	if err != nil {
		// Stock is already committed and the cart pruned at this point.
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout failed")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID,
		"lines":    len(grouped),
		"total":    summary.Total.String(),
	}), "checkout.completed")

	return &Receipt{
		OrderID: orderID,
		Items:   grouped,
		Summary: summary.Items,
		Total:   summary.Total,
	}, nil
}

func (s *Service) purchaseLines(ctx context.Context, store CartStore, items []BuyNowItem) ([]cart.Line, error) {
	if items == nil {
		lines, err := store.Get(ctx)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return lines, nil
	}

	lines := make([]cart.Line, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ArticleID)
		article, ok := s.catalog.Find(id)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "article not found").
				WithDetails(map[string]string{"article_id": id})
		}
		qty := cart.ParseQuantity(item.Quantity)
		if article.Stock >= 1 && qty > article.Stock {
			qty = article.Stock
		}
		lines = append(lines, cart.Line{ArticleID: id, Quantity: qty})
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase has no items")
	}
	return lines, nil
}
