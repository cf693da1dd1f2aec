package httpserver

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"rental_kernel/internal/adapters/observability"
	"rental_kernel/internal/domain"
)

func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return http.TimeoutHandler(next, d, "timeout") }
}

// ---- status-recording ResponseWriter ----

type srw struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *srw) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *srw) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *srw) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// ---- Metrics middleware ----

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &srw{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		observability.ObserveHTTP(route, r.Method, sw.Status(), time.Since(start))
	})
}

// ---- Structured logging middleware ----

func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &srw{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			l.Info().
				Str("route", route).
				Str("method", r.Method).
				Int("status", sw.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", remoteIP(r)).
				Str("ua", r.UserAgent()).
				Msg("http_request")
		})
	}
}

// Picks first X-Forwarded-For IP, else X-Real-IP, else RemoteAddr host.
func remoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// ---- Principal resolution ----

// TenantDirectory finds the Active tenant occupying a room.
type TenantDirectory interface {
	ActiveTenantInRoom(room string) (domain.Tenant, bool)
}

// Auth resolves the caller: a bearer admin token, or a tenant bound by room
// number. Requests with neither pass through anonymous.
type Auth struct {
	AdminToken string
	Tenants    TenantDirectory
}

type principalKey struct{}

func (a Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p domain.Principal
		if h := r.Header.Get("Authorization"); h != "" {
			tok, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || a.AdminToken == "" || subtle.ConstantTimeCompare([]byte(tok), []byte(a.AdminToken)) != 1 {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid admin token")
				return
			}
			p.Role = domain.RoleAdmin
		} else if room := strings.TrimSpace(r.Header.Get("X-Tenant-Room")); room != "" {
			t, ok := a.Tenants.ActiveTenantInRoom(room)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "no active tenant in room "+room)
				return
			}
			p = domain.Principal{Role: domain.RoleTenant, Tenant: &t}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// PrincipalFrom returns the resolved caller; Role is empty for anonymous requests.
func PrincipalFrom(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey{}).(domain.Principal)
	return p
}

// RequireAdmin rejects every caller without an administrative role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		switch {
		case p.Role == "":
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "admin token required")
		case !p.Role.Administrative():
			writeProblem(w, http.StatusForbidden, "Forbidden", "administrative role required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// RequirePrincipal rejects anonymous callers.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()).Role == "" {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "admin token or X-Tenant-Room required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
