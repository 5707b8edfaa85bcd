package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/zerymnor-storefront/pkg/airtable"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

// RecordStore is the remote surface used by catalog administration.
type RecordStore interface {
	RecordLister
	Get(ctx context.Context, table, id string) (airtable.Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (airtable.Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (airtable.Record, error)
	Delete(ctx context.Context, table, id string) error
}

// refresher is satisfied by *Cache.
type refresher interface {
	Refresh(ctx context.Context) error
}

// ArticleInput is the admin payload for creating or editing an article.
type ArticleInput struct {
	Title            string
	ShortDescription string
	LongDescription  string
	Price            decimal.Decimal
	Stock            int
	ImageURL         string
}

// Admin manages articles on the remote table and keeps the cache current.
type Admin struct {
	store       RecordStore
	cache       refresher
	table       string
	placeholder string
	logg        *logger.Logger
}

// NewAdmin builds the admin service.
func NewAdmin(store RecordStore, cache refresher, table string, logg *logger.Logger) (*Admin, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "record store required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "articles table required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Admin{
		store:       store,
		cache:       cache,
		table:       table,
		placeholder: DefaultPlaceholderImage,
		logg:        logg,
	}, nil
}

// List reads the articles straight from the remote store.
func (a *Admin) List(ctx context.Context) ([]Article, error) {
	result, err := a.store.List(ctx, a.table)
	if err != nil {
		return nil, err
	}
	out := make([]Article, 0, len(result.Records))
	for _, rec := range result.Records {
		if article, ok := FromRecord(rec, a.placeholder); ok {
			out = append(out, article)
		}
	}
	return out, nil
}

// Get reads one article from the remote store.
func (a *Admin) Get(ctx context.Context, id string) (Article, error) {
	rec, err := a.store.Get(ctx, a.table, id)
	if err != nil {
		return Article{}, err
	}
	article, ok := FromRecord(rec, a.placeholder)
	if !ok {
		return Article{}, pkgerrors.New(pkgerrors.CodeNotFound, "article not found")
	}
	return article, nil
}

// Create inserts an article. A title is required.
func (a *Admin) Create(ctx context.Context, input ArticleInput) (Article, error) {
	fields, err := input.fields(false)
	if err != nil {
		return Article{}, err
	}
	rec, err := a.store.Create(ctx, a.table, fields)
	if err != nil {
		return Article{}, err
	}
	a.logg.Info(a.logg.WithArticleID(ctx, rec.ID), "catalog.article_created")
	a.refresh(ctx)
	article, _ := FromRecord(rec, a.placeholder)
	return article, nil
}

// Update replaces the editable fields of an article. An empty image clears it.
func (a *Admin) Update(ctx context.Context, id string, input ArticleInput) (Article, error) {
	fields, err := input.fields(true)
	if err != nil {
		return Article{}, err
	}
	rec, err := a.store.Update(ctx, a.table, id, fields)
	if err != nil {
		return Article{}, err
	}
	a.refresh(ctx)
	article, _ := FromRecord(rec, a.placeholder)
	return article, nil
}

// Delete removes an article.
func (a *Admin) Delete(ctx context.Context, id string) error {
	if err := a.store.Delete(ctx, a.table, id); err != nil {
		return err
	}
	a.logg.Info(a.logg.WithArticleID(ctx, id), "catalog.article_deleted")
	a.refresh(ctx)
	return nil
}

// refresh failures are logged by the cache; the mutation itself succeeded.
func (a *Admin) refresh(ctx context.Context) {
	if a.cache == nil {
		return
	}
	_ = a.cache.Refresh(ctx)
}

func (in ArticleInput) fields(update bool) (map[string]any, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" && !update {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required").
			WithDetails(map[string]string{"title": "required"})
	}
	if in.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative").
			WithDetails(map[string]string{"price": "min"})
	}
	stock := in.Stock
	if stock < 0 {
		stock = 0
	}

	price, _ := in.Price.Float64()
	fields := map[string]any{
		FieldTitle:            title,
		FieldShortDescription: strings.TrimSpace(in.ShortDescription),
		FieldLongDescription:  strings.TrimSpace(in.LongDescription),
		FieldPrice:            price,
		FieldStock:            stock,
	}

	image := strings.TrimSpace(in.ImageURL)
	switch {
	case image != "":
		fields[FieldImage] = []map[string]string{{"url": image}}
	case update:
		fields[FieldImage] = nil
	}
	return fields, nil
}
