package auth

import (
	"net/http"
	"strings"
)

// Skipper reports whether a request may proceed without a token.
type Skipper func(r *http.Request) bool

// FailureFunc writes the response for a rejected request.
type FailureFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware validates bearer tokens and stores the resulting claims on the request context.
type Middleware struct {
	Config    Config
	Skipper   Skipper
	OnFailure FailureFunc
}

// NewMiddleware constructs a middleware that leaves probes and CORS preflight open.
func NewMiddleware(cfg Config) Middleware {
	return Middleware{Config: cfg, Skipper: publicRequest}
}

func publicRequest(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	fail := m.OnFailure
	if fail == nil {
		fail = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.parseRequest(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	switch {
	case scheme == "":
		return nil, ErrMissingToken
	case !found || !strings.EqualFold(scheme, "bearer"):
		return nil, ErrInvalidToken
	}
	return Parse(token, m.Config)
}
