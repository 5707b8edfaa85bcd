package checkout

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/angelmondragon/zerymnor-storefront/internal/cart"
	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	"github.com/angelmondragon/zerymnor-storefront/pkg/airtable"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type patchCall struct {
	id     string
	fields map[string]any
}

type stubRecords struct {
	mu        sync.Mutex
	records   map[string]map[string]any
	getErr    map[string]error
	updateErr map[string]error
	gets      int
	patches   []patchCall
}

func newStubRecords(records map[string]map[string]any) *stubRecords {
	return &stubRecords{records: records, getErr: map[string]error{}, updateErr: map[string]error{}}
}

func (s *stubRecords) Get(ctx context.Context, table, id string) (airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if err := s.getErr[id]; err != nil {
		return airtable.Record{}, err
	}
	fields, ok := s.records[id]
	if !ok {
		return airtable.Record{}, pkgerrors.New(pkgerrors.CodeNotFound, "get record request failed")
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return airtable.Record{ID: id, Fields: copied}, nil
}

func (s *stubRecords) Update(ctx context.Context, table, id string, fields map[string]any) (airtable.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[id]; err != nil {
		return airtable.Record{}, err
	}
	s.patches = append(s.patches, patchCall{id: id, fields: fields})
	for k, v := range fields {
		s.records[id][k] = v
	}
	return airtable.Record{ID: id, Fields: s.records[id]}, nil
}

func (s *stubRecords) patchFor(id string) (patchCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patches {
		if p.id == id {
			return p, true
		}
	}
	return patchCall{}, false
}

type stubCache struct {
	mu       sync.Mutex
	articles map[string]catalog.Article
}

func newStubCache(articles ...catalog.Article) *stubCache {
	c := &stubCache{articles: map[string]catalog.Article{}}
	for _, a := range articles {
		c.articles[a.ID] = a
	}
	return c
}

func (c *stubCache) Find(id string) (catalog.Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.articles[id]
	return a, ok
}

func (c *stubCache) SetStock(id string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.articles[id]; ok {
		a.Stock = stock
		c.articles[id] = a
	}
}

type recordingPruner struct {
	calls [][]cart.Line
}

func (p *recordingPruner) RemoveQuantities(ctx context.Context, lines []cart.Line) error {
	p.calls = append(p.calls, lines)
	return nil
}

type failingPruner struct {
	calls int
}

func (p *failingPruner) RemoveQuantities(ctx context.Context, lines []cart.Line) error {
	p.calls++
	return pkgerrors.New(pkgerrors.CodeDependency, "save cart")
}

func article(id string, stock int) catalog.Article {
	return catalog.Article{ID: id, Title: "Title " + id, Price: decimal.RequireFromString("10"), Stock: stock}
}

func TestReconcileEmptyMakesNoRemoteCalls(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{})
	engine := NewEngine(records, newStubCache(), "Articulos")
	pruner := &recordingPruner{}

	err := engine.Reconcile(context.Background(), pruner, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if records.gets != 0 || len(pruner.calls) != 0 {
		t.Fatalf("expected no remote or cart activity")
	}
}

func TestReconcileDecrementsStock(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 5}})
	cache := newStubCache(article("A", 5))
	engine := NewEngine(records, cache, "Articulos")
	pruner := &recordingPruner{}

	if err := engine.Reconcile(context.Background(), pruner, []cart.Line{{ArticleID: "A", Quantity: 3}}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	patch, ok := records.patchFor("A")
	if !ok || !reflect.DeepEqual(patch.fields, map[string]any{"stock": 2}) {
		t.Fatalf("unexpected patch %+v", patch)
	}
	if a, _ := cache.Find("A"); a.Stock != 2 {
		t.Fatalf("expected cached stock 2, got %d", a.Stock)
	}
	if len(pruner.calls) != 1 || !reflect.DeepEqual(pruner.calls[0], []cart.Line{{ArticleID: "A", Quantity: 3}}) {
		t.Fatalf("expected cart pruned once, got %+v", pruner.calls)
	}
}

func TestReconcileInsufficientStock(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 2}})
	engine := NewEngine(records, newStubCache(article("A", 2)), "Articulos")
	pruner := &recordingPruner{}

	err := engine.Reconcile(context.Background(), pruner, []cart.Line{{ArticleID: "A", Quantity: 3}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(catalog.StockShortfall)
	if !ok || details.ArticleID != "A" || details.Requested != 3 || details.Available != 2 || details.Shortfall != 1 {
		t.Fatalf("unexpected details %+v", pkgerrors.As(err).Details())
	}
	if len(records.patches) != 0 || len(pruner.calls) != 0 {
		t.Fatalf("no patch or cart change expected")
	}
}

func TestReconcileUsesLowerOfRemoteAndCached(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 9}})
	engine := NewEngine(records, newStubCache(article("A", 2)), "Articulos")

	err := engine.Reconcile(context.Background(), nil, []cart.Line{{ArticleID: "A", Quantity: 3}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict from cached stock, got %v", err)
	}

	records = newStubRecords(map[string]map[string]any{"B": {"stock": 4}})
	engine = NewEngine(records, newStubCache(), "Articulos")
	if err := engine.Reconcile(context.Background(), nil, []cart.Line{{ArticleID: "B", Quantity: 4}}); err != nil {
		t.Fatalf("uncached article should use remote stock: %v", err)
	}
	if patch, _ := records.patchFor("B"); patch.fields["stock"] != 0 {
		t.Fatalf("expected stock patched to 0, got %+v", patch)
	}
}

func TestReconcilePatchesDiscoveredField(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{
		"A": {"Stock": "7"},
		"B": {"existencias": 3.0},
	})
	engine := NewEngine(records, newStubCache(article("A", 7), article("B", 3)), "Articulos")

	lines := []cart.Line{{ArticleID: "A", Quantity: 1}, {ArticleID: "B", Quantity: 2}}
	if err := engine.Reconcile(context.Background(), nil, lines); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if p, _ := records.patchFor("A"); !reflect.DeepEqual(p.fields, map[string]any{"Stock": 6}) {
		t.Fatalf("unexpected patch for A %+v", p.fields)
	}
	if p, _ := records.patchFor("B"); !reflect.DeepEqual(p.fields, map[string]any{"existencias": 1}) {
		t.Fatalf("unexpected patch for B %+v", p.fields)
	}
}

func TestReconcileMissingStockField(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"titulo": "x"}})
	engine := NewEngine(records, newStubCache(article("A", 5)), "Articulos")

	err := engine.Reconcile(context.Background(), nil, []cart.Line{{ArticleID: "A", Quantity: 1}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) || pkgerrors.As(err).Message() != "stock field missing" {
		t.Fatalf("expected stock field missing error, got %v", err)
	}
}

func TestReconcilePartialFailureKeepsSucceededLines(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 5}, "B": {"stock": 5}})
	records.updateErr["B"] = pkgerrors.New(pkgerrors.CodeDependency, "update record request failed")
	cache := newStubCache(article("A", 5), article("B", 5))
	engine := NewEngine(records, cache, "Articulos")
	pruner := &recordingPruner{}

	lines := []cart.Line{{ArticleID: "A", Quantity: 1}, {ArticleID: "B", Quantity: 1}}
	err := engine.Reconcile(context.Background(), pruner, lines)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(multierr.Errors(err)) != 1 {
		t.Fatalf("expected one line error, got %v", multierr.Errors(err))
	}
	if records.records["A"]["stock"] != 4 {
		t.Fatalf("succeeded line must stay decremented, got %v", records.records["A"]["stock"])
	}
	if a, _ := cache.Find("A"); a.Stock != 4 {
		t.Fatalf("cache should reflect committed decrement, got %d", a.Stock)
	}
	if len(pruner.calls) != 0 {
		t.Fatalf("cart must not be pruned on failure")
	}
}

func TestReconcileCompensationRestoresSucceededLines(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 5}, "B": {"stock": 1}})
	cache := newStubCache(article("A", 5), article("B", 1))
	engine := NewEngine(records, cache, "Articulos", WithCompensation(true))

	lines := []cart.Line{{ArticleID: "A", Quantity: 2}, {ArticleID: "B", Quantity: 3}}
	err := engine.Reconcile(context.Background(), nil, lines)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict from B, got %v", err)
	}
	if records.records["A"]["stock"] != 5 {
		t.Fatalf("expected A restored to 5, got %v", records.records["A"]["stock"])
	}
	if a, _ := cache.Find("A"); a.Stock != 5 {
		t.Fatalf("expected cached A restored, got %d", a.Stock)
	}
}

func TestReconcileCombinesAllLineErrors(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 0}})
	records.getErr["B"] = pkgerrors.New(pkgerrors.CodeTimeout, "get record timed out")
	engine := NewEngine(records, newStubCache(article("A", 0)), "Articulos")

	lines := []cart.Line{{ArticleID: "A", Quantity: 1}, {ArticleID: "B", Quantity: 1}, {ArticleID: "C", Quantity: 1}}
	err := engine.Reconcile(context.Background(), nil, lines)
	errs := multierr.Errors(err)
	if len(errs) != 3 {
		t.Fatalf("expected three line errors, got %v", errs)
	}
	if !pkgerrors.IsCode(errs[0], pkgerrors.CodeConflict) || !pkgerrors.IsCode(errs[1], pkgerrors.CodeTimeout) || !pkgerrors.IsCode(errs[2], pkgerrors.CodeNotFound) {
		t.Fatalf("unexpected error codes %v", errs)
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("first line error should decide the code, got %v", err)
	}
}

func TestReconcileMergesDuplicateLines(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 5}})
	engine := NewEngine(records, newStubCache(article("A", 5)), "Articulos")

	lines := []cart.Line{{ArticleID: "A", Quantity: 1}, {ArticleID: "A", Quantity: 2}}
	if err := engine.Reconcile(context.Background(), nil, lines); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(records.patches) != 1 || records.records["A"]["stock"] != 2 {
		t.Fatalf("expected a single merged patch, got %+v", records.patches)
	}
}

func TestReconcileSucceedsWhenPruneFails(t *testing.T) {
	records := newStubRecords(map[string]map[string]any{"A": {"stock": 5}})
	engine := NewEngine(records, newStubCache(article("A", 5)), "Articulos")
	pruner := &failingPruner{}

	if err := engine.Reconcile(context.Background(), pruner, []cart.Line{{ArticleID: "A", Quantity: 2}}); err != nil {
		t.Fatalf("expected committed reconciliation to succeed, got %v", err)
	}
	if pruner.calls != 1 {
		t.Fatalf("expected one prune attempt, got %d", pruner.calls)
	}
	if records.records["A"]["stock"] != 3 {
		t.Fatalf("expected remote stock 3, got %v", records.records["A"]["stock"])
	}
}
