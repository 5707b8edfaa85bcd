package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/zerymnor-storefront/internal/cart"
	"github.com/angelmondragon/zerymnor-storefront/pkg/airtable"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/angelmondragon/zerymnor-storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Remote order fields.
const (
	FieldName    = "Nombre"
	FieldEmail   = "Email"
	FieldAddress = "Direccion"
	FieldItems   = "ArticulosComprados"
	FieldTotal   = "TotalPagado"
)

// Summary is the flattened purchase written to the orders table.
type Summary struct {
	Items string
	Total decimal.Decimal
	Lines []cart.Line
}

// BuildSummary renders "<id> x<qty> (<title>)" per line, joined with ", ",
// and totals price times quantity. Unknown articles keep an empty title and
// contribute nothing to the total.
func BuildSummary(lines []cart.Line, cat cart.Catalog) Summary {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		title := ""
		if article, ok := cat.Find(line.ArticleID); ok {
			title = article.Title
		}
		parts = append(parts, fmt.Sprintf("%s x%d (%s)", line.ArticleID, line.Quantity, title))
	}
	return Summary{
		Items: strings.Join(parts, ", "),
		Total: cart.Total(cat, lines),
		Lines: lines,
	}
}

// RecordCreator is the remote write surface used for orders.
type RecordCreator interface {
	Create(ctx context.Context, table string, fields map[string]any) (airtable.Record, error)
}

// Recorder writes orders to the remote orders table.
type Recorder struct {
	store   RecordCreator
	table   string
	logg    *logger.Logger
	metrics *metrics.StorefrontMetrics
}

// NewRecorder builds an order recorder.
func NewRecorder(store RecordCreator, table string, logg *logger.Logger, m *metrics.StorefrontMetrics) (*Recorder, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "record store required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders table required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Recorder{store: store, table: table, logg: logg, metrics: m}, nil
}

// Record creates one order record. Failures are returned as-is, never retried.
func (r *Recorder) Record(ctx context.Context, buyer Buyer, summary Summary) (string, error) {
	total, _ := summary.Total.Float64()
	fields := map[string]any{
		FieldName:    buyer.Name,
		FieldEmail:   buyer.Email,
		FieldAddress: buyer.Address,
		FieldItems:   summary.Items,
		FieldTotal:   total,
	}
	rec, err := r.store.Create(ctx, r.table, fields)
	if err != nil {
		r.metrics.OrderRecorded(false)
		r.logg.Error(ctx, "orders.record_failed", err)
		return "", err
	}
	r.metrics.OrderRecorded(true)
	r.logg.Info(r.logg.WithField(ctx, "order_id", rec.ID), "orders.recorded")
	return rec.ID, nil
}
