// Package handler exposes the storefront and back-office HTTP API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/aura-scents/internal/domain/auth"
	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/order"
	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/domain/promotion"
	"github.com/xenking/aura-scents/internal/domain/wallet"
	"github.com/xenking/aura-scents/internal/report"
)

// Orders is the order service as used by the API.
type Orders interface {
	Checkout(ctx context.Context, cmd order.CheckoutCommand) (*order.CheckoutResult, error)
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
	GetUserOrder(ctx context.Context, userID int64, orderID string) (*order.Order, error)
	ListOrders(ctx context.Context, userID int64, limit int) ([]order.Order, error)
	Totals(o *order.Order) pricing.Breakdown
	CancelOrder(ctx context.Context, cmd order.CancelOrderCommand) (*order.Order, error)
	ReturnOrder(ctx context.Context, cmd order.ReturnOrderCommand) (*order.Order, error)
	CancelItem(ctx context.Context, cmd order.CancelItemCommand) (*order.Order, error)
	ReturnItem(ctx context.Context, cmd order.ReturnItemCommand) (*order.Order, error)
	UpdateOrderStatus(ctx context.Context, cmd order.UpdateOrderStatusCommand) (*order.Order, error)
	UpdateItemStatus(ctx context.Context, cmd order.UpdateItemStatusCommand) (*order.Order, error)
	RecordPayment(ctx context.Context, res order.PaymentResult) (*order.Order, error)
}

// Carts is the cart service as used by the API.
type Carts interface {
	Add(ctx context.Context, userID, productID int64, variantID *int64, quantity int) error
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	Remove(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
	View(ctx context.Context, userID int64, couponCode string) (*cart.View, error)
}

// Wallets reads wallet statements.
type Wallets interface {
	Statement(ctx context.Context, userID int64) (wallet.Wallet, []wallet.Transaction, error)
}

// Coupons administers coupons.
type Coupons interface {
	Create(ctx context.Context, c coupon.Coupon) (*coupon.Coupon, error)
	Update(ctx context.Context, c coupon.Coupon) (*coupon.Coupon, error)
}

// Offers administers offers.
type Offers interface {
	Create(ctx context.Context, o promotion.Offer) (*promotion.Offer, error)
	Update(ctx context.Context, o promotion.Offer) (*promotion.Offer, error)
}

// Reports builds sales summaries.
type Reports interface {
	Sales(ctx context.Context, from, to time.Time) (*report.Summary, error)
}

// Webhooks verifies payment gateway callbacks.
type Webhooks interface {
	ParseWebhook(payload []byte, signature string) (order.PaymentResult, bool, error)
}

// ShopperVerifier resolves shopper bearer tokens.
type ShopperVerifier interface {
	Verify(token string) (auth.Shopper, error)
}

// StaffAuthenticator resolves staff API keys.
type StaffAuthenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// Deps are the services behind the API. Webhooks may be nil when online
// payment is disabled.
type Deps struct {
	Orders   Orders
	Carts    Carts
	Wallets  Wallets
	Coupons  Coupons
	Offers   Offers
	Reports  Reports
	Webhooks Webhooks
	Shoppers ShopperVerifier
	Staff    StaffAuthenticator
	Clock    func() time.Time
}

// Handler serves the HTTP API.
type Handler struct {
	orders   Orders
	carts    Carts
	wallets  Wallets
	coupons  Coupons
	offers   Offers
	reports  Reports
	webhooks Webhooks
	shoppers ShopperVerifier
	staff    StaffAuthenticator
	now      func() time.Time
}

// New constructs a Handler.
func New(d Deps) *Handler {
	h := &Handler{
		orders:   d.Orders,
		carts:    d.Carts,
		wallets:  d.Wallets,
		coupons:  d.Coupons,
		offers:   d.Offers,
		reports:  d.Reports,
		webhooks: d.Webhooks,
		shoppers: d.Shoppers,
		staff:    d.Staff,
		now:      d.Clock,
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	if h.webhooks != nil {
		r.Post("/payments/webhook", h.paymentWebhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.requireShopper)

		r.Get("/cart", h.viewCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/items", h.addCartItem)
		r.Patch("/cart/items/{itemID}", h.updateCartItem)
		r.Delete("/cart/items/{itemID}", h.removeCartItem)

		r.Post("/checkout", h.checkout)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)
		r.Post("/orders/{orderID}/return", h.returnOrder)
		r.Post("/orders/{orderID}/items/{itemID}/cancel", h.cancelItem)
		r.Post("/orders/{orderID}/items/{itemID}/return", h.returnItem)

		r.Get("/wallet", h.getWallet)
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(h.requireStaff(auth.ScopeOrders)).Group(func(r chi.Router) {
			r.Get("/orders/{orderID}", h.adminGetOrder)
			r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
			r.Patch("/orders/{orderID}/items/{itemID}/status", h.updateItemStatus)
		})
		r.With(h.requireStaff(auth.ScopeCoupons)).Group(func(r chi.Router) {
			r.Post("/coupons", h.createCoupon)
			r.Put("/coupons/{code}", h.updateCoupon)
		})
		r.With(h.requireStaff(auth.ScopeOffers)).Group(func(r chi.Router) {
			r.Post("/offers", h.createOffer)
			r.Put("/offers/{offerID}", h.updateOffer)
		})
		r.With(h.requireStaff(auth.ScopeReports)).Get("/reports/sales", h.salesReport)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}
