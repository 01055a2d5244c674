package server

import (
	"net/http"
	"time"

	"github.com/dgellow/authfront/internal/cookie"
	"github.com/dgellow/authfront/internal/crypto"
	"github.com/dgellow/authfront/internal/log"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on responses
const RequestIDHeader = "X-Request-ID"

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions. The last one
// listed runs first.
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes written
// while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

var _ http.ResponseWriter = (*responseWriterDelegator)(nil)

// NewRequestIDMiddleware assigns every request a UUID, echoed in the
// X-Request-ID response header
func NewRequestIDMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
		})
	}
}

// NewLoggerMiddleware adds request/response logging
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				fields["request_id"] = id
			}

			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.LogErrorWithFields(prefix, "Recovered from panic", map[string]any{
						"panic":      err,
						"path":       r.URL.Path,
						"request_id": RequestIDFromContext(r.Context()),
					})
					writeErrorPage(w, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewBrowserMiddleware makes sure every request carries a device and a tab
// cookie. Ids are UUIDs signed with signer so a client cannot pick another
// browser's id; unsigned or tampered values are replaced with fresh ids.
func NewBrowserMiddleware(signer crypto.TokenSigner, deviceMaxAge time.Duration) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			device, fresh := browserCookieID(r, signer, cookie.DeviceCookie)
			if fresh || device == "" {
				device = issueBrowserID(signer, func(v string) {
					cookie.SetDevice(w, v, deviceMaxAge)
				})
			}

			tab, fresh := browserCookieID(r, signer, cookie.TabCookie)
			if fresh || tab == "" {
				tab = issueBrowserID(signer, func(v string) {
					cookie.SetTab(w, v)
				})
			}

			if device == "" || tab == "" {
				writeErrorPage(w, http.StatusInternalServerError)
				return
			}

			ctx := withBrowser(r.Context(), BrowserID{Device: device, Tab: tab})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// browserCookieID returns the verified id held in cookie name. fresh is true
// when the browser has to be issued a new one.
func browserCookieID(r *http.Request, signer crypto.TokenSigner, name string) (id string, fresh bool) {
	value, err := cookie.Get(r, name)
	if err != nil {
		return "", true
	}
	if err := signer.Verify(value, &id); err != nil {
		log.LogDebugWithFields("browser", "Replacing invalid browser cookie", map[string]any{
			"cookie": name,
			"error":  err.Error(),
		})
		return "", true
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", true
	}
	return id, false
}

func issueBrowserID(signer crypto.TokenSigner, set func(string)) string {
	id := uuid.NewString()
	value, err := signer.Sign(id)
	if err != nil {
		log.LogErrorWithFields("browser", "Failed to sign browser id", map[string]any{
			"error": err.Error(),
		})
		return ""
	}
	set(value)
	return id
}
