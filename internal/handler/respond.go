package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// respond writes a JSON body built with the given encoder callback.
func respond(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// respondError writes the standard error envelope used across all endpoints.
func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// money emits a decimal amount as a JSON number with two fraction digits.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}
