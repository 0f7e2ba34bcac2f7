package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/popis/internal/counting"
	"github.com/erazemk/popis/internal/model"
)

// Options configures NewRouter.
type Options struct {
	JWTSecret   string
	TokenExpiry time.Duration

	// LoginLimiter throttles login attempts per client; nil disables it.
	LoginLimiter *RateLimiter
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, svc *counting.Service, opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: opts.JWTSecret, TokenExpiry: opts.TokenExpiry}
	usersHandler := &UsersHandler{DB: db}
	productsHandler := &ProductsHandler{DB: db}
	sessionsHandler := &SessionsHandler{Service: svc}

	authMW := AuthMiddleware(opts.JWTSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	var login http.Handler = http.HandlerFunc(authHandler.Login)
	if opts.LoginLimiter != nil {
		login = opts.LoginLimiter.Middleware(login)
	}
	mux.Handle("POST /api/auth/login", login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Catalog: read (all roles), write (manager+).
	mux.Handle("GET /api/products", authMW(http.HandlerFunc(productsHandler.List)))
	mux.Handle("POST /api/products", authMW(requireManager(http.HandlerFunc(productsHandler.Create))))
	mux.Handle("GET /api/products/{id}", authMW(http.HandlerFunc(productsHandler.Get)))
	mux.Handle("POST /api/products/{id}/variants", authMW(requireManager(http.HandlerFunc(productsHandler.CreateVariant))))

	// Stock ledger.
	mux.Handle("GET /api/stock", authMW(http.HandlerFunc(productsHandler.ListStock)))
	mux.Handle("POST /api/stock", authMW(requireManager(http.HandlerFunc(productsHandler.ReceiveStock))))
	mux.Handle("GET /api/adjustments", authMW(http.HandlerFunc(productsHandler.ListAdjustments)))

	// Count sessions: counting (all roles), lifecycle (manager+).
	mux.Handle("GET /api/sessions", authMW(http.HandlerFunc(sessionsHandler.List)))
	mux.Handle("POST /api/sessions", authMW(requireManager(http.HandlerFunc(sessionsHandler.Create))))
	mux.Handle("GET /api/sessions/{id}", authMW(http.HandlerFunc(sessionsHandler.Get)))
	mux.Handle("DELETE /api/sessions/{id}", authMW(requireManager(http.HandlerFunc(sessionsHandler.Delete))))
	mux.Handle("POST /api/sessions/{id}/counts", authMW(http.HandlerFunc(sessionsHandler.RecordCount)))
	mux.Handle("GET /api/sessions/{id}/history", authMW(http.HandlerFunc(sessionsHandler.History)))
	mux.Handle("POST /api/sessions/{id}/recompute", authMW(http.HandlerFunc(sessionsHandler.Recompute)))
	mux.Handle("POST /api/sessions/{id}/complete", authMW(requireManager(http.HandlerFunc(sessionsHandler.Complete))))
	mux.Handle("POST /api/sessions/{id}/approve", authMW(http.HandlerFunc(sessionsHandler.Approve)))

	return mux
}
