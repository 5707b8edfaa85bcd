package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/zerymnor-storefront/api/responses"
	"github.com/angelmondragon/zerymnor-storefront/api/validators"
	"github.com/angelmondragon/zerymnor-storefront/internal/checkout"
	"github.com/angelmondragon/zerymnor-storefront/internal/orders"
	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
)

// CheckoutRunner runs reconciliation and order recording.
type CheckoutRunner interface {
	Checkout(ctx context.Context, store checkout.CartStore, buyer orders.Buyer, items []checkout.BuyNowItem) (*checkout.Receipt, error)
}

// Buyer fields are validated after normalization by the checkout service.
type checkoutRequest struct {
	Buyer orders.Buyer        `json:"buyer" validate:"-"`
	Items []checkoutItemInput `json:"items"`
}

type checkoutItemInput struct {
	ID       string      `json:"id"`
	Quantity rawQuantity `json:"quantity"`
}

// Checkout buys the session cart, or only the listed items when present.
func Checkout(svc CheckoutRunner, sessions CartSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		store, ok := sessionStore(w, r, sessions, logg)
		if !ok {
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Checkout(r.Context(), store, payload.Buyer, payload.buyNowItems())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

// buyNowItems is nil when the request omitted items, meaning the whole cart.
func (p checkoutRequest) buyNowItems() []checkout.BuyNowItem {
	if p.Items == nil {
		return nil
	}
	items := make([]checkout.BuyNowItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, checkout.BuyNowItem{ArticleID: item.ID, Quantity: string(item.Quantity)})
	}
	return items
}
