package cart

import (
	"context"
	"strings"

	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// Catalog is the read surface the cart needs from the article cache.
type Catalog interface {
	Find(id string) (catalog.Article, bool)
}

// Store is one session's cart. Every mutation is persisted before it returns.
type Store struct {
	storage Storage
	catalog Catalog
	key     string
}

// NewStore binds a cart to a storage backend and session key.
func NewStore(storage Storage, catalog Catalog, key string) *Store {
	return &Store{storage: storage, catalog: catalog, key: key}
}

// Key returns the session key the cart is stored under.
func (s *Store) Key() string {
	return s.key
}

// Get returns the grouped cart. Missing or unreadable data is an empty cart;
// only a storage failure is an error.
func (s *Store) Get(ctx context.Context) ([]Line, error) {
	raw, ok, err := s.storage.Load(ctx, s.key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !ok {
		return []Line{}, nil
	}
	return decodeLines(raw), nil
}

// Set replaces the cart contents.
func (s *Store) Set(ctx context.Context, lines []Line) error {
	payload, err := encodeLines(lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.storage.Save(ctx, s.key, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

// Add puts one more unit of an article in the cart.
func (s *Store) Add(ctx context.Context, articleID string) error {
	id := strings.TrimSpace(articleID)
	article, ok := s.catalog.Find(id)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "article not found")
	}
	lines, err := s.Get(ctx)
	if err != nil {
		return err
	}

	for i := range lines {
		if lines[i].ArticleID != id {
			continue
		}
		if lines[i].Quantity >= article.Stock {
			return catalog.InsufficientStock(article, lines[i].Quantity+1, article.Stock)
		}
		lines[i].Quantity++
		return s.Set(ctx, lines)
	}

	if article.Stock < 1 {
		return catalog.InsufficientStock(article, 1, article.Stock)
	}
	return s.Set(ctx, append(lines, Line{ArticleID: id, Quantity: 1}))
}

// SetQuantity clamps qty into [1, stock]. Ids not in the cart are ignored;
// a line whose article has no stock left is removed.
func (s *Store) SetQuantity(ctx context.Context, articleID string, qty int) error {
	id := strings.TrimSpace(articleID)
	lines, err := s.Get(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(lines, id)
	if idx < 0 {
		return nil
	}
	article, ok := s.catalog.Find(id)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "article not found")
	}

	if article.Stock < 1 {
		return s.Set(ctx, append(lines[:idx], lines[idx+1:]...))
	}
	if qty < 1 {
		qty = 1
	}
	if qty > article.Stock {
		qty = article.Stock
	}
	lines[idx].Quantity = qty
	return s.Set(ctx, lines)
}

// Remove deletes a line. Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, articleID string) error {
	id := strings.TrimSpace(articleID)
	lines, err := s.Get(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(lines, id)
	if idx < 0 {
		return nil
	}
	return s.Set(ctx, append(lines[:idx], lines[idx+1:]...))
}

// RemoveQuantities decrements each named line and drops lines that reach zero.
func (s *Store) RemoveQuantities(ctx context.Context, purchased []Line) error {
	lines, err := s.Get(ctx)
	if err != nil {
		return err
	}
	for _, p := range Group(purchased) {
		idx := indexOf(lines, p.ArticleID)
		if idx < 0 {
			continue
		}
		lines[idx].Quantity -= p.Quantity
	}
	// Set drops the lines that fell below 1.
	return s.Set(ctx, lines)
}

// GroupedTotal sums price times quantity; unknown articles count as zero.
func (s *Store) GroupedTotal(ctx context.Context) (decimal.Decimal, error) {
	lines, err := s.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return Total(s.catalog, lines), nil
}

// Total prices lines against the catalog.
func Total(cat Catalog, lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		article, ok := cat.Find(line.ArticleID)
		if !ok {
			continue
		}
		total = total.Add(article.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func indexOf(lines []Line, id string) int {
	for i, line := range lines {
		if line.ArticleID == id {
			return i
		}
	}
	return -1
}

// Sessions builds per-session stores over one storage backend.
type Sessions struct {
	storage Storage
	catalog Catalog
}

// NewSessions binds a storage backend and catalog for all sessions.
func NewSessions(storage Storage, catalog Catalog) *Sessions {
	return &Sessions{storage: storage, catalog: catalog}
}

// ForSession returns the cart for sessionID.
func (s *Sessions) ForSession(sessionID string) *Store {
	return NewStore(s.storage, s.catalog, sessionID)
}

// Storage exposes the backend, used for readiness checks.
func (s *Sessions) Storage() Storage {
	return s.storage
}
