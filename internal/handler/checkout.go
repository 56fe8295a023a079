package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/checkout"
)

const maxBodyBytes = 1 << 20

// checkoutRequest is the wire shape shared by the quote and confirm
// endpoints. Prices never come from the client; items carry only product
// references and quantities.
type checkoutRequest struct {
	UserID       string          `json:"userId"`
	Items        []checkoutItem  `json:"items"`
	Shipping     decimal.Decimal `json:"shipping"`
	CouponCodes  []string        `json:"couponCodes"`
	AppliedCodes []string        `json:"appliedCodes"`
}

type checkoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (req *checkoutRequest) toDomain() checkout.QuoteRequest {
	items := make([]checkout.QuoteItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = checkout.QuoteItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}
	return checkout.QuoteRequest{
		UserID:       req.UserID,
		Items:        items,
		Shipping:     req.Shipping,
		CouponCodes:  req.CouponCodes,
		AppliedCodes: req.AppliedCodes,
	}
}

// quote prices a cart without side effects.
func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCheckoutRequest(w, r)
	if !ok {
		return
	}

	result, err := h.checkout.Quote(r.Context(), req.toDomain())
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	respond(w, http.StatusOK, func(e *jx.Encoder) {
		encodeQuote(e, result)
	})
}

// confirm prices the cart and records redemption events for applied coupons.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCheckoutRequest(w, r)
	if !ok {
		return
	}

	result, err := h.checkout.Checkout(r.Context(), req.toDomain())
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeQuote(e, result)
	})
}

func decodeCheckoutRequest(w http.ResponseWriter, r *http.Request) (*checkoutRequest, bool) {
	var req checkoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

// writeCheckoutError maps domain errors to HTTP responses: malformed input is
// 400, references to unknown or unusable data are 422, everything else is an
// internal error.
func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, checkout.ErrEmptyItems) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *checkout.InvalidQuantityError
	if errors.As(err, &iqErr) {
		respondError(w, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}

	var pnfErr *checkout.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		respondError(w, http.StatusUnprocessableEntity, pnfErr.Error())
		return
	}

	zctx.From(r.Context()).Error("Checkout", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

func encodeQuote(e *jx.Encoder, q *checkout.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(q.ID) })
		if q.UserID != "" {
			e.Field("userId", func(e *jx.Encoder) { e.Str(q.UserID) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range q.Items {
					item := &q.Items[i]
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("title", func(e *jx.Encoder) { e.Str(item.Title) })
						e.Field("category", func(e *jx.Encoder) { e.Str(item.Category) })
						e.Field("brand", func(e *jx.Encoder) { e.Str(item.Brand) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, item.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						e.Field("lineTotal", func(e *jx.Encoder) { money(e, item.LineTotal()) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, q.Subtotal) })
		e.Field("shipping", func(e *jx.Encoder) { money(e, q.Shipping) })
		e.Field("discount", func(e *jx.Encoder) { money(e, q.Discount) })
		e.Field("total", func(e *jx.Encoder) { money(e, q.Total) })
		e.Field("coupons", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("requested", func(e *jx.Encoder) { e.Int(q.Coupons.Requested) })
				e.Field("applied", func(e *jx.Encoder) { e.Int(q.Coupons.Applied) })
				e.Field("productsDiscounted", func(e *jx.Encoder) { e.Int(q.Coupons.ProductsDiscounted) })
				e.Field("totalDiscount", func(e *jx.Encoder) { money(e, q.Coupons.TotalDiscount) })
				e.Field("outcomes", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, outcome := range q.Coupons.Outcomes {
							e.Obj(func(e *jx.Encoder) {
								e.Field("code", func(e *jx.Encoder) { e.Str(outcome.Code) })
								e.Field("applied", func(e *jx.Encoder) { e.Bool(outcome.Applied) })
								e.Field("discount", func(e *jx.Encoder) { money(e, outcome.Discount) })
								if outcome.Reason != "" {
									e.Field("reason", func(e *jx.Encoder) { e.Str(outcome.Reason) })
								}
								if outcome.Result != nil && outcome.Result.Message != "" {
									e.Field("message", func(e *jx.Encoder) { e.Str(outcome.Result.Message) })
								}
							})
						}
					})
				})
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(q.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
