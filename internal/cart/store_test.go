package cart

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

type stubCatalog map[string]catalog.Article

func (s stubCatalog) Find(id string) (catalog.Article, bool) {
	a, ok := s[id]
	return a, ok
}

func testCatalog() stubCatalog {
	return stubCatalog{
		"A":      {ID: "A", Title: "Alpha", Price: decimal.RequireFromString("10.50"), Stock: 3},
		"B":      {ID: "B", Title: "Beta", Price: decimal.RequireFromString("2"), Stock: 1},
		"Z":      {ID: "Z", Title: "Zero", Price: decimal.RequireFromString("5"), Stock: 0},
		"book-1": {ID: "book-1", Title: "Book", Price: decimal.RequireFromString("19.99"), Stock: 5},
	}
}

func newTestStore(t *testing.T, lines ...Line) (*Store, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	store := NewStore(storage, testCatalog(), "session-1")
	if len(lines) > 0 {
		if err := store.Set(context.Background(), lines); err != nil {
			t.Fatalf("seed cart: %v", err)
		}
	}
	return store, storage
}

func mustGet(t *testing.T, store *Store) []Line {
	t.Helper()
	lines, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return lines
}

func TestStoreGetEmptyAndCorrupt(t *testing.T) {
	store, storage := newTestStore(t)
	if lines := mustGet(t, store); len(lines) != 0 || lines == nil {
		t.Fatalf("expected empty non-nil cart, got %#v", lines)
	}
	_ = storage.Save(context.Background(), "session-1", "garbage")
	if lines := mustGet(t, store); len(lines) != 0 {
		t.Fatalf("corrupt cart must read as empty, got %+v", lines)
	}
}

func TestStoreSetGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	want := []Line{{"A", 2}, {"B", 1}}
	if err := store.Set(context.Background(), want); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mustGet(t, store); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestStoreAdd(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for i := 0; i < 3; i++ {
		if err := store.Add(ctx, "A"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	err := store.Add(ctx, "A")
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict at stock limit, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(catalog.StockShortfall)
	if !ok || details.Requested != 4 || details.Available != 3 || details.Shortfall != 1 {
		t.Fatalf("unexpected details %+v", pkgerrors.As(err).Details())
	}
	if got := mustGet(t, store); !reflect.DeepEqual(got, []Line{{"A", 3}}) {
		t.Fatalf("failed add must not change cart, got %+v", got)
	}

	if err := store.Add(ctx, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Add(ctx, "Z"); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for out-of-stock article, got %v", err)
	}
	if got := mustGet(t, store); len(got) != 1 {
		t.Fatalf("unexpected cart %+v", got)
	}
}

func TestStoreSetQuantityClamps(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, Line{"A", 1})

	cases := []struct{ in, want int }{{2, 2}, {99, 3}, {0, 1}, {-5, 1}}
	for _, tc := range cases {
		if err := store.SetQuantity(ctx, "A", tc.in); err != nil {
			t.Fatalf("set quantity %d: %v", tc.in, err)
		}
		if got := mustGet(t, store); got[0].Quantity != tc.want {
			t.Fatalf("SetQuantity(%d): expected %d, got %d", tc.in, tc.want, got[0].Quantity)
		}
	}
}

func TestStoreSetQuantityEdgeCases(t *testing.T) {
	ctx := context.Background()
	store, storage := newTestStore(t, Line{"A", 1}, Line{"Z", 2})

	if err := store.SetQuantity(ctx, "B", 1); err != nil {
		t.Fatalf("absent id must be a no-op, got %v", err)
	}
	if err := store.SetQuantity(ctx, "Z", 1); err != nil {
		t.Fatalf("set quantity out of stock: %v", err)
	}
	if got := mustGet(t, store); !reflect.DeepEqual(got, []Line{{"A", 1}}) {
		t.Fatalf("expected out-of-stock line removed, got %+v", got)
	}

	_ = storage.Save(ctx, "session-1", `[{"id":"ghost","quantity":1}]`)
	if err := store.SetQuantity(ctx, "ghost", 2); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown article, got %v", err)
	}
}

func TestStoreRemove(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, Line{"A", 2}, Line{"B", 1})
	if err := store.Remove(ctx, "A"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "nope"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if got := mustGet(t, store); !reflect.DeepEqual(got, []Line{{"B", 1}}) {
		t.Fatalf("unexpected cart %+v", got)
	}
}

func TestStoreRemoveQuantities(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, Line{"A", 3}, Line{"B", 1}, Line{"book-1", 2})
	if err := store.RemoveQuantities(ctx, []Line{{"A", 1}, {"B", 1}, {"missing", 4}}); err != nil {
		t.Fatalf("remove quantities: %v", err)
	}
	want := []Line{{"A", 2}, {"book-1", 2}}
	if got := mustGet(t, store); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestStoreGroupedTotal(t *testing.T) {
	store, _ := newTestStore(t, Line{"A", 2}, Line{"B", 1}, Line{"ghost", 3})
	total, err := store.GroupedTotal(context.Background())
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("23")) {
		t.Fatalf("expected 23, got %s", total)
	}
}

func TestStoreQuantitiesStayInBounds(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	cat := testCatalog()
	ops := []func(){
		func() { _ = store.Add(ctx, "A") },
		func() { _ = store.Add(ctx, "B") },
		func() { _ = store.SetQuantity(ctx, "A", 40) },
		func() { _ = store.Add(ctx, "B") },
		func() { _ = store.SetQuantity(ctx, "B", -1) },
		func() { _ = store.Add(ctx, "book-1") },
		func() { _ = store.SetQuantity(ctx, "book-1", 4) },
		func() { _ = store.RemoveQuantities(ctx, []Line{{"book-1", 1}}) },
		func() { _ = store.Add(ctx, "A") },
	}
	for i, op := range ops {
		op()
		for _, line := range mustGet(t, store) {
			stock := cat[line.ArticleID].Stock
			if line.Quantity < 1 || line.Quantity > stock {
				t.Fatalf("after op %d line %+v out of bounds (stock %d)", i, line, stock)
			}
		}
	}
}

type failingStorage struct{}

func (failingStorage) Load(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("backend down")
}

func (failingStorage) Save(ctx context.Context, key, value string) error {
	return errors.New("backend down")
}

func TestStoreStorageFailures(t *testing.T) {
	store := NewStore(failingStorage{}, testCatalog(), "s")
	if _, err := store.Get(context.Background()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if err := store.Set(context.Background(), []Line{{"A", 1}}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
