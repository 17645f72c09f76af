package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Config *Config
}

// MiddlewareStack installs the default middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	requestTimeout := 30 * time.Second
	mutationRate := 120
	if cfg.Config != nil {
		requestTimeout = cfg.Config.AppRequestTimeout
		if cfg.Config.MutationRatePerMinute > 0 {
			mutationRate = cfg.Config.MutationRatePerMinute
		}
	}

	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		secureMiddleware.Handler,
		mutationRateLimit(mutationRate),
		PrincipalMiddleware,
	}
}

// mutationRateLimit throttles administrative writes per client IP; reads
// pass through untouched.
func mutationRateLimit(perMinute int) func(http.Handler) http.Handler {
	limiter := httprate.LimitByIP(perMinute, time.Minute)
	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

// PrincipalMiddleware lifts the authenticated identity from the trusted
// headers the identity layer injects. The engine performs no credential
// verification of its own; absent headers simply leave no principal in
// context and every guarded route denies.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, errU := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		orgID, errO := strconv.ParseInt(r.Header.Get("X-Organization-ID"), 10, 64)
		if errU != nil || errO != nil {
			next.ServeHTTP(w, r)
			return
		}
		p := shared.Principal{
			UserID:         userID,
			OrganizationID: orgID,
			Super:          r.Header.Get("X-Super-Admin") == "1",
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}
