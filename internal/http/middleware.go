package http

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kharcha/internal/log"
)

const requestIDHeader = "X-Request-ID"

// withMiddleware wraps next with request tracing, CORS, security headers,
// rate limiting and panic recovery. Recovery runs inside the status-capturing
// writer so a recovered panic is logged as 500.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		rw.Header().Set(requestIDHeader, requestIDFrom(r))
		s.setCORSHeaders(rw, r)
		setSecurityHeaders(rw)

		s.httpLog.LogHTTPStart(ctx, r, clientIP)
		defer func() {
			s.httpLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
		}()

		if detectSuspiciousRequest(r, s.metrics) {
			log.FromContext(ctx).WithComponent(log.ComponentSecurity).WarnContext(ctx,
				"Suspicious request", log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		}

		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			log.FromContext(ctx).WithComponent(log.ComponentRateLimit).WarnContext(ctx,
				"Rate limit exceeded", log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeError(rw, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		s.recoverPanics(next).ServeHTTP(rw, r)
	})

	return requestIDMiddleware(
		log.Middleware(s.logger)(
			log.RequestIDMiddleware(requestIDFrom)(h)))
}

// requestIDMiddleware reuses an incoming X-Request-ID or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get(requestIDHeader)) == "" {
			r.Header.Set(requestIDHeader, generateRequestID())
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDFrom(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

func generateRequestID() string {
	return "req_" + uuid.NewString()
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				atomic.AddInt64(&s.metrics.recoveredPanics, 1)
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Recovered from panic",
					log.FieldError, fmt.Sprint(rec),
					log.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", s.corsOrigin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Data-Source")
	h.Set("Access-Control-Max-Age", "600")
	if s.corsOrigin != "*" {
		h.Add("Vary", "Origin")
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
