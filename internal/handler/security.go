package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/auth"
)

// staffKeyHeader carries the staff API key.
const staffKeyHeader = "api_key"

type staffKey struct{}

func staffFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	k, ok := ctx.Value(staffKey{}).(*auth.APIKeyInfo)
	return k, ok
}

// requireShopper authenticates a Bearer token and stores the shopper in the
// request context.
func (h *Handler) requireShopper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, r, auth.ErrUnauthorized)
			return
		}
		s, err := h.shoppers.Verify(strings.TrimSpace(token))
		if err != nil {
			zctx.From(r.Context()).Debug("Shopper token rejected", zap.Error(err))
			writeError(w, r, auth.ErrUnauthorized)
			return
		}
		ctx := auth.WithShopper(r.Context(), s)
		ctx = zctx.With(ctx, zap.Int64("user_id", s.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireStaff authenticates a staff API key holding scope.
func (h *Handler) requireStaff(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(staffKeyHeader)
			if key == "" {
				key = r.Header.Get("X-API-Key")
			}
			info, err := h.staff.Authenticate(r.Context(), key)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if !info.HasScope(scope) {
				writeMessage(w, http.StatusForbidden, "missing scope "+scope, "")
				return
			}
			ctx := context.WithValue(r.Context(), staffKey{}, info)
			ctx = zctx.With(ctx, zap.String("api_key", info.Name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func shopperID(r *http.Request) int64 {
	s, _ := auth.ShopperFromContext(r.Context())
	return s.UserID
}
