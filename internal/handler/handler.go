// Package handler exposes the HTTP API: product catalog reads and the
// checkout quote/confirm endpoints.
package handler

import (
	"net/http"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/checkout"
	"github.com/adworldmediaonline/ewo-checkout/internal/domain/product"
	"github.com/adworldmediaonline/ewo-checkout/pkg/httpmiddleware"
)

// Handler serves the public API, delegating business logic to the checkout
// service and product repository.
type Handler struct {
	products product.Repository
	checkout *checkout.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, checkoutService *checkout.Service) *Handler {
	return &Handler{
		products: products,
		checkout: checkoutService,
	}
}

// Routes builds the API mux. The auth middleware guards the checkout
// endpoints; catalog reads and quote previews stay public.
func (h *Handler) Routes(auth httpmiddleware.Middleware) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/checkout/quote", h.quote)
	mux.Handle("POST /api/checkout", httpmiddleware.Wrap(http.HandlerFunc(h.confirm), auth))
	return mux
}
