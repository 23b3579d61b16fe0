package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"pawfect/internal/shared/auth"
	"pawfect/internal/shared/logger"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
	ctxKeyRequestID
)

// Roles as issued by the accounts service.
const (
	RoleBuyer  = "BUYER"
	RoleSeller = "SELLER"
	RoleRider  = "RIDER"
	RoleAdmin  = "ADMIN"
)

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(ctxKeyClaims).(*auth.Claims)
	return claims
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyRequestID).(string)
	return id
}

// withRequestID tags every request, honoring an inbound X-Request-ID from
// the gateway.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate validates the Bearer token and stores the claims.
func (h *Handler) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.jwt.ValidateToken(token)
		if err != nil {
			h.log.Warn(logger.Entry{
				Action:    "auth_rejected",
				Message:   "token validation failed",
				RequestID: requestIDFrom(r),
				Error:     &logger.ErrObj{Msg: err.Error()},
			})
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next(w, r.WithContext(ctx))
	}
}

// requireRole gates a handler to the given roles. Admin passes everywhere.
func (h *Handler) requireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return h.authenticate(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims.Role == RoleAdmin {
			next(w, r)
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				next(w, r)
				return
			}
		}
		respondError(w, http.StatusForbidden, "insufficient role")
	})
}
