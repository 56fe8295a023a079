package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/auth"
	"github.com/adworldmediaonline/ewo-checkout/pkg/httpmiddleware"
)

// APIKeyHeader carries the client credential for protected endpoints.
const APIKeyHeader = "Api-Key"

// APIKeyAuth returns a middleware that authenticates requests via
// HMAC-SHA256 hashed API keys. The raw key never touches storage; only its
// keyed hash is looked up.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				respondError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// Constant-time comparison guards against timing side-channels
			// in case the repository returns a stale or wrong row.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				zctx.From(r.Context()).Warn("API key hash mismatch", zap.String("key_id", info.ID))
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
