package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"example.com/activityplanner/internal/auth"
	"example.com/activityplanner/internal/domain"
	"example.com/activityplanner/internal/logging"
	"example.com/activityplanner/internal/notify"
)

// requireScope rejects requests whose claims lack scope.
func requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			if !claims.HasScope(scope) {
				writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// collectNotices captures the notices raised while serving each request.
func collectNotices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := notify.WithCollector(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request.
func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// cors allows the local dashboard to call the API.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language, X-Confirm")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorFrom(r *http.Request) domain.Actor {
	claims, _ := auth.FromContext(r.Context())
	if claims == nil {
		return domain.Actor{}
	}
	return domain.Actor{ID: claims.Subject, Name: claims.Name}
}

// locale prefers ?lang= over Accept-Language.
func locale(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return lang
	}
	return r.Header.Get("Accept-Language")
}

// requestConfirmer answers the confirmation prompt from the X-Confirm header or ?confirm=.
func requestConfirmer(r *http.Request) domain.Confirmer {
	return domain.ConfirmFunc(func(_ context.Context, _ domain.Prompt) bool {
		return truthy(r.Header.Get("X-Confirm")) || truthy(r.URL.Query().Get("confirm"))
	})
}

func truthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "yes" {
		return true
	}
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}
