package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/product"
)

// listProducts returns the full catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("List products", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range products {
				encodeProduct(e, &products[i])
			}
		})
	})
}

// getProduct returns a single product by ID.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("Get product", zap.String("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respond(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, p)
	})
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("brand", func(e *jx.Encoder) { e.Str(p.Brand) })
	})
}
