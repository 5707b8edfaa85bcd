package catalog

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/zerymnor-storefront/pkg/airtable"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// Article is a normalized catalog entry.
type Article struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"short_description"`
	LongDescription  string          `json:"long_description"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	ImageURL         string          `json:"image_url"`
}

// FromRecord maps a remote record through the alias table. ok is false when
// the record has no id.
func FromRecord(rec airtable.Record, placeholder string) (Article, bool) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return Article{}, false
	}
	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	short := FirstString(fields, ShortDescriptionFields)
	long := FirstString(fields, LongDescriptionFields)
	if long == "" {
		long = short
	}

	article := Article{
		ID:               id,
		Title:            FirstString(fields, TitleFields),
		ShortDescription: short,
		LongDescription:  long,
		Price:            decimal.Zero,
		ImageURL:         ImageURL(fields, placeholder),
	}
	if _, value, ok := LocateField(fields, PriceFields); ok {
		article.Price = ParsePrice(value)
	}
	if _, value, ok := LocateField(fields, StockFields); ok {
		article.Stock = ParseInt(value)
	}
	return article, true
}

// DisplayName returns the title, or the id when the title is empty.
func (a Article) DisplayName() string {
	if a.Title != "" {
		return a.Title
	}
	return a.ID
}

// StockShortfall describes a request that exceeds available stock.
type StockShortfall struct {
	ArticleID string `json:"article_id"`
	Title     string `json:"title,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Shortfall int    `json:"shortfall"`
}

// InsufficientStock builds the conflict error returned when requested > available.
func InsufficientStock(article Article, requested, available int) *pkgerrors.Error {
	if available < 0 {
		available = 0
	}
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for %s", article.DisplayName())).
		WithDetails(StockShortfall{
			ArticleID: article.ID,
			Title:     article.Title,
			Requested: requested,
			Available: available,
			Shortfall: requested - available,
		})
}
