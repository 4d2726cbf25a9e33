package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/server/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// ClaimsFrom returns the access token claims stored by authenticate.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// authenticate requires a valid "Authorization: Bearer <token>" header.
func (h *handlers) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			h.writeError(w, r, common.ErrorUnauthorized)
			return
		}

		claims, err := h.deps.Tokens.ParseAccessToken(strings.TrimSpace(token))
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireSelf lets a caller act only on its own {id}. Admins may act on anyone.
func (h *handlers) requireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			h.writeError(w, r, common.ErrorUnauthorized)
			return
		}
		if id := chi.URLParam(r, "id"); id != claims.UserID && claims.Role != common.RoleAdmin {
			h.writeError(w, r, common.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireVerified refuses tokens minted before the account's chosen contact
// was verified.
func (h *handlers) requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			h.writeError(w, r, common.ErrorUnauthorized)
			return
		}
		if claims.Pending {
			h.writeError(w, r, common.ErrVerificationPending)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog logs one line per request and feeds the HTTP metrics.
func (h *handlers) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		d := time.Since(start)

		h.deps.Metrics.ObserveHTTP(route, r.Method, status, d)
		h.log.Info(r.Context(), "http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", d,
		)
	})
}
