package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/pkg/httpx"
	"github.com/polarisid/polaris/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	Sessions  *service.SessionService
	Signin    *service.SigninService
	Grant     *service.GrantService
	Tokens    *service.TokenService
	Device    *service.DeviceService
	TwoFactor *service.TwoFactorService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerSignin()
	r.registerOAuth2()
	r.registerDevice()
	r.registerTwoFactor()
	r.registerSystem()
}

// ServeHTTP applies the global middleware chain in front of the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Sessions: r.Sessions}
	r.Mux.Handle("POST /v1/session", httpx.Chain(http.HandlerFunc(h.HandleIssue),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))
}

func (r *Router) registerSignin() {
	h := &SigninHandler{Sessions: r.Sessions, Signin: r.Signin}
	// Authentication attempts get the strict limit.
	r.Mux.Handle("POST /v1/signin", httpx.Chain(h,
		httpx.RateLimitByIP(httpx.StrictLimit),
	))
}

func (r *Router) registerOAuth2() {
	authorize := &AuthorizeHandler{Sessions: r.Sessions, Grant: r.Grant}
	r.Mux.Handle("POST /v1/oauth2/authorize", httpx.Chain(authorize,
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	revoke := &RevokeHandler{Tokens: r.Tokens}
	r.Mux.Handle("POST /v1/oauth2/revoke", httpx.Chain(revoke,
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))

	tokeninfo := &TokenInfoHandler{Tokens: r.Tokens}
	r.Mux.Handle("POST /v1/oauth2/tokeninfo", httpx.Chain(tokeninfo,
		httpx.RateLimitByIP(httpx.LenientLimit),
	))
}

func (r *Router) registerDevice() {
	h := &DeviceHandler{Sessions: r.Sessions, Device: r.Device}
	r.Mux.Handle("POST /v1/oauth2/device/code", httpx.Chain(http.HandlerFunc(h.HandleBegin),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))
	r.Mux.Handle("POST /v1/oauth2/device/approve", httpx.Chain(http.HandlerFunc(h.HandleApprove),
		httpx.RateLimitByIP(httpx.StrictLimit),
	))
	r.Mux.Handle("POST /v1/oauth2/device/status", httpx.Chain(http.HandlerFunc(h.HandleStatus),
		httpx.RateLimitByIP(httpx.LenientLimit),
	))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{Sessions: r.Sessions, TwoFactor: r.TwoFactor}
	r.Mux.Handle("POST /v1/users/2fa", httpx.Chain(http.HandlerFunc(h.HandleEnable),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))
	r.Mux.Handle("DELETE /v1/users/2fa", httpx.Chain(http.HandlerFunc(h.HandleDisable),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))
	r.Mux.Handle("PATCH /v1/users/credentials/{id}", httpx.Chain(http.HandlerFunc(h.HandleUpdateCredential),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))
	r.Mux.Handle("DELETE /v1/users/credentials/{id}", httpx.Chain(http.HandlerFunc(h.HandleDeleteCredential),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	))
}

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET /livez", r.handleLivez)
	r.Mux.HandleFunc("GET /readyz", r.handleReadyz)
}
