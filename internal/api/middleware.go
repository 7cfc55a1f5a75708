package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/telemetry"
)

// HeaderRequestID — заголовок с идентификатором запроса.
const HeaderRequestID = "X-Request-ID"

// Middleware оборачивает http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain(m1, m2)(h) = m1(m2(h)): первый middleware — внешний.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// RequestLogger кладёт в контекст запроса логгер с request_id.
// Идентификатор берётся из X-Request-ID или генерируется и
// возвращается клиенту тем же заголовком.
func RequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := telemetry.WithLogger(r.Context(), logger.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog пишет строку на каждый запрос. Southbridge опрашивается
// постоянно, поэтому успешные ответы на него идут уровнем DEBUG.
func AccessLog(quiet bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			switch {
			case sw.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case quiet && sw.status < http.StatusBadRequest:
				level = slog.LevelDebug
			}
			telemetry.FromContext(r.Context()).Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", routeOf(r),
				"status", sw.status,
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// Instrument учитывает запросы в метриках по шаблону маршрута.
func Instrument(metrics *telemetry.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			metrics.HTTPRequest(routeOf(r), sw.status, time.Since(start))
		})
	}
}

// Recovery превращает панику handler'а в ответ 500.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger := telemetry.FromContext(r.Context())
					logger.Error("handler panicked",
						"panic", rec,
						"route", routeOf(r),
						"stack", string(debug.Stack()),
					)
					Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// BasicAuth закрывает southbridge паролем processor'ов.
// Пустой username отключает проверку.
func BasicAuth(username, password string) Middleware {
	return func(next http.Handler) http.Handler {
		if username == "" {
			return next
		}
		want := []byte(username + ":" + password)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(user+":"+pass), want) != 1 {
				telemetry.FromContext(r.Context()).Warn("southbridge auth failed", "user", user)
				w.Header().Set("WWW-Authenticate", `Basic realm="conveyor"`)
				Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// routeOf возвращает шаблон маршрута ServeMux; для неизвестных — "unmatched",
// чтобы не раздувать кардинальность метрик.
func routeOf(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}
