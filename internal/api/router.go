package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/eventviewer/server/internal/api/handlers"
	"github.com/eventviewer/server/internal/api/middleware"
	"github.com/eventviewer/server/internal/auth"
	"github.com/eventviewer/server/internal/config"
	"github.com/eventviewer/server/internal/metrics"
	"github.com/eventviewer/server/internal/realtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Services are the domain components behind the HTTP surface.
type Services struct {
	Users         handlers.Registrar
	Sessions      handlers.SessionService
	Passwords     handlers.PasswordResetter
	Authenticator middleware.Authenticator
	Events        handlers.EventService
	Notifications handlers.NotificationService
}

type Deps struct {
	Config   config.Config
	Logger   zerolog.Logger
	Services Services
	Hub      *realtime.Hub
	Health   *handlers.HealthChecker
	// UploadsDir is served under /uploads/ when poster images are stored locally.
	UploadsDir string
	Build      BuildInfo
}

// Router is the root handler. Close releases the rate limiter.
type Router struct {
	http.Handler
	limiter *middleware.RateLimiter
}

func (r *Router) Close() {
	r.limiter.Stop()
}

func NewRouter(deps Deps) *Router {
	cfg := deps.Config
	env := cfg.Environment
	svc := deps.Services

	limiter := middleware.NewRateLimiter(cfg.RateLimit, env)
	requireAuth := middleware.RequireAuth(svc.Authenticator, env)
	jsonBody := middleware.JSONRequestSize()
	uploadBody := middleware.UploadRequestSize()

	authH := handlers.NewAuthHandler(svc.Users, svc.Sessions, env, cfg.Environment == "production")
	passwordH := handlers.NewPasswordHandler(svc.Passwords, env)
	eventsH := handlers.NewEventsHandler(svc.Events, env)
	notificationsH := handlers.NewNotificationsHandler(svc.Notifications, env)

	public := limiter.Tier(middleware.TierPublic)
	authed := func(h http.HandlerFunc, roles ...auth.Role) http.Handler {
		var out http.Handler = h
		if len(roles) > 0 {
			out = middleware.RequireRole(env, roles...)(out)
		}
		return requireAuth(out)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/auth/register", chain(http.HandlerFunc(authH.Register), public, jsonBody))
	mux.Handle("POST /api/v1/auth/login", chain(http.HandlerFunc(authH.Login), limiter.Tier(middleware.TierLogin), jsonBody))
	mux.Handle("POST /api/v1/auth/logout", chain(authed(authH.Logout), public))
	mux.Handle("POST /api/v1/auth/refresh", chain(http.HandlerFunc(authH.Refresh), public))

	mux.Handle("POST /api/v1/password/forgot-password", chain(http.HandlerFunc(passwordH.ForgotPassword), limiter.Tier(middleware.TierForgotPassword), jsonBody))
	mux.Handle("POST /api/v1/password/verify-otp", chain(http.HandlerFunc(passwordH.VerifyOTP), limiter.Tier(middleware.TierVerifyOTP), jsonBody))
	mux.Handle("POST /api/v1/password/reset-password", chain(http.HandlerFunc(passwordH.ResetPassword), limiter.Tier(middleware.TierResetPassword), jsonBody))

	mux.Handle("/api/v1/events", chain(methodMux(map[string]http.Handler{
		http.MethodGet:  authed(eventsH.List),
		http.MethodPost: uploadBody(authed(eventsH.Create, auth.RoleAdmin)),
	}), public))
	mux.Handle("/api/v1/events/{eventId}", chain(methodMux(map[string]http.Handler{
		http.MethodPatch:  uploadBody(authed(eventsH.Edit, auth.RoleAdmin)),
		http.MethodDelete: authed(eventsH.Delete, auth.RoleAdmin),
	}), public))
	mux.Handle("POST /api/v1/events/{eventId}/approve", chain(authed(eventsH.Approve, auth.RoleSuperAdmin), public))
	mux.Handle("POST /api/v1/events/{eventId}/reject", chain(authed(eventsH.Reject, auth.RoleSuperAdmin), public, jsonBody))
	mux.Handle("POST /api/v1/events/{eventId}/feedback", chain(authed(eventsH.Feedback, auth.RoleSuperAdmin), public, jsonBody))
	mux.Handle("GET /api/v1/users/events", chain(authed(eventsH.Categorized), public))

	notificationsTier := limiter.Tier(middleware.TierNotifications)
	mux.Handle("GET /api/v1/notifications", chain(authed(notificationsH.List), notificationsTier))
	mux.Handle("PATCH /api/v1/notifications/{notificationId}/read", chain(authed(notificationsH.MarkAsRead), notificationsTier))

	if deps.Hub != nil {
		ws := realtime.NewHandler(svc.Authenticator, deps.Hub, handlers.ErrorWriter(env), wsOriginPatterns(cfg.CORS), deps.Logger)
		mux.Handle("GET /api/v1/ws", ws)
	}

	mux.Handle("GET /healthz", handlers.Healthz())
	if deps.Health != nil {
		mux.Handle("GET /readyz", deps.Health.Readyz())
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", VersionHandler(deps.Build))
	if deps.UploadsDir != "" {
		mux.Handle("GET /uploads/", uploadsHandler(deps.UploadsDir))
	}

	var root http.Handler = metrics.HTTPMiddleware(mux)
	root = middleware.CORS(cfg.CORS, deps.Logger)(root)
	root = middleware.SecurityHeaders(cfg.Environment == "production")(root)
	root = middleware.RequestLogging(deps.Logger)(root)
	if cfg.Tracing.Enabled {
		root = middleware.Tracing(root)
	}
	root = middleware.CorrelationID(deps.Logger)(root)

	return &Router{Handler: root, limiter: limiter}
}

// chain applies mws so the first one runs outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// uploadsHandler serves locally stored posters. Images are embedded by the
// client app, so the resource policy is relaxed for this prefix.
func uploadsHandler(dir string) http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		w.Header().Del("Content-Security-Policy")
		files.ServeHTTP(w, r)
	})
}

// wsOriginPatterns converts CORS origins into host patterns for the
// WebSocket origin check.
func wsOriginPatterns(cfg config.CORSConfig) []string {
	if cfg.AllowAllOrigins {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		host := origin
		if _, rest, ok := strings.Cut(origin, "://"); ok {
			host = rest
		}
		if host = strings.TrimSuffix(host, "/"); host != "" {
			patterns = append(patterns, host)
		}
	}
	return patterns
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
