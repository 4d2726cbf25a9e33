package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Satyam1603/GoTogether/internal/logging"
)

type handlers struct {
	deps Deps
	log  logging.Logger
}

// NewRouter wires every route under deps.BasePath plus /healthz and /metrics
// at the root.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logging.Nop{}
	}
	h := &handlers{deps: deps, log: deps.Logger.With("module", "http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	base := "/" + strings.Trim(deps.BasePath, "/")
	if base == "/" {
		h.routes(r)
	} else {
		r.Route(base, h.routes)
	}

	return r
}

func (h *handlers) routes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh-token", h.refreshToken)
		r.Post("/logout", h.logout)
		r.Get("/verify-email-confirm", h.verifyEmailConfirm)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.requireSelf)

				// reachable with a pending token
				r.Get("/", h.getUser)
				r.Get("/verification-status", h.verificationStatus)
				r.Post("/revoke-token", h.revokeToken)
				r.Post("/revoke-all", h.revokeAll)
				r.Post("/verify-phone", h.verifyPhone)
				r.Post("/verify-otp", h.verifyOTP)
				r.Post("/verify-email", h.verifyEmail)

				r.Group(func(r chi.Router) {
					r.Use(h.requireVerified)
					r.Put("/", h.updateProfile)
					r.Patch("/password", h.changePassword)
					r.Post("/image-upload-url", h.imageUploadURL)
					r.Get("/image-url", h.imageURL)
				})
			})
		})
	})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.DB.PingContext(ctx); err != nil {
			h.log.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "database unreachable", Code: "unavailable"})
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
