package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/zerymnor-storefront/api/middleware"
	"github.com/angelmondragon/zerymnor-storefront/api/responses"
	"github.com/angelmondragon/zerymnor-storefront/api/validators"
	"github.com/angelmondragon/zerymnor-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
)

// CartSessions resolves the cart bound to a session.
type CartSessions interface {
	ForSession(sessionID string) *cart.Store
}

type cartLineResponse struct {
	ID        string          `json:"id"`
	Quantity  int             `json:"quantity"`
	Title     string          `json:"title,omitempty"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Stock     int             `json:"stock"`
	ImageURL  string          `json:"image_url,omitempty"`
}

type cartResponse struct {
	Items []cartLineResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type addCartItemRequest struct {
	ID string `json:"id" validate:"required"`
}

type setQuantityRequest struct {
	Quantity rawQuantity `json:"quantity"`
}

// rawQuantity keeps whatever the client sent, number or string, for lenient parsing.
type rawQuantity string

func (q *rawQuantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = rawQuantity(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*q = ""
		return nil
	}
	*q = rawQuantity(data)
	return nil
}

// CartFetch returns the grouped cart of the calling session with its total.
func CartFetch(sessions CartSessions, cat ArticleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := sessionStore(w, r, sessions, logg)
		if !ok {
			return
		}
		lines, err := store.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cat, lines))
	}
}

// CartAddItem adds one unit of an article to the cart.
func CartAddItem(sessions CartSessions, cat ArticleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := sessionStore(w, r, sessions, logg)
		if !ok {
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.Add(r.Context(), strings.TrimSpace(payload.ID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, store, cat, logg)
	}
}

// CartSetQuantity sets the quantity of a line, clamped to the article stock.
func CartSetQuantity(sessions CartSessions, cat ArticleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := sessionStore(w, r, sessions, logg)
		if !ok {
			return
		}

		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		articleID := strings.TrimSpace(chi.URLParam(r, "articleId"))
		qty := cart.ParseQuantity(string(payload.Quantity))
		if err := store.SetQuantity(r.Context(), articleID, qty); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, store, cat, logg)
	}
}

// CartRemoveItem drops every unit of an article from the cart.
func CartRemoveItem(sessions CartSessions, cat ArticleReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := sessionStore(w, r, sessions, logg)
		if !ok {
			return
		}

		articleID := strings.TrimSpace(chi.URLParam(r, "articleId"))
		if err := store.Remove(r.Context(), articleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCart(w, r, store, cat, logg)
	}
}

// CartTotal returns only the cart total.
func CartTotal(sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := sessionStore(w, r, sessions, logg)
		if !ok {
			return
		}
		total, err := store.GroupedTotal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]decimal.Decimal{"total": total})
	}
}

func sessionStore(w http.ResponseWriter, r *http.Request, sessions CartSessions, logg *logger.Logger) (*cart.Store, bool) {
	if sessions == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return nil, false
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id missing"))
		return nil, false
	}
	return sessions.ForSession(sessionID), true
}

func writeCart(w http.ResponseWriter, r *http.Request, store *cart.Store, cat ArticleReader, logg *logger.Logger) {
	lines, err := store.Get(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, newCartResponse(cat, lines))
}

func newCartResponse(cat ArticleReader, lines []cart.Line) cartResponse {
	resp := cartResponse{Items: make([]cartLineResponse, 0, len(lines)), Total: decimal.Zero}
	for _, line := range cart.Group(lines) {
		item := cartLineResponse{ID: line.ArticleID, Quantity: line.Quantity, Price: decimal.Zero, LineTotal: decimal.Zero}
		if cat != nil {
			if article, ok := cat.Find(line.ArticleID); ok {
				item.Title = article.Title
				item.Price = article.Price
				item.Stock = article.Stock
				item.ImageURL = article.ImageURL
				item.LineTotal = article.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			}
		}
		resp.Total = resp.Total.Add(item.LineTotal)
		resp.Items = append(resp.Items, item)
	}
	return resp
}
