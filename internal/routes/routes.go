package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/chatooz-backend/internal/handlers"
	"github.com/AnshRaj112/chatooz-backend/internal/middleware"
)

// Options carries the pieces routes need besides the handler.
type Options struct {
	Metrics    http.Handler  // served at /metrics when set
	Redis      *redis.Client // shared rate limit for directory lookups when set
	TrustProxy bool
}

// lookupLimit caps directory-backed conversation requests per client IP.
const (
	lookupLimit  = 30
	lookupWindow = time.Minute
)

func SetupRoutes(r chi.Router, h *handlers.Handler, opts Options) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// Auth
	r.Post("/api/auth/signup", h.SignUp)
	r.Post("/api/auth/signin", h.SignIn)
	r.Get("/api/auth/verify", h.VerifyEmail)
	r.Post("/api/auth/signout", h.SignOut)
	r.Get("/api/session", h.Session)

	// Realtime gateway, authenticated by the chat connect token
	r.Get("/ws/chat", h.ChatWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)

		r.Get("/api/profile", h.GetProfile)
		r.Post("/api/profile/avatar", h.UpdateAvatar)
		r.Get("/api/chat/history", h.ChatHistory)

		r.Group(func(r chi.Router) {
			if opts.Redis != nil {
				r.Use(middleware.RedisRateLimit(opts.Redis, "lookup", lookupLimit, lookupWindow, middleware.ByIP(opts.TrustProxy)))
			}
			r.Post("/api/conversations/peer", h.FindPeer)
			r.Post("/api/conversations/group", h.CreateGroup)
		})
	})
}
