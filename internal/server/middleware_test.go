package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgellow/authfront/internal/cookie"
	"github.com/dgellow/authfront/internal/crypto"
	"github.com/dgellow/authfront/internal/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("inner"), mark("outer"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(nil) })

	var seen string
	h := ChainMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), NewLoggerMiddleware("test"), NewRequestIDMiddleware())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/pot", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	out := buf.String()
	assert.Contains(t, out, "request_id="+seen)
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=15")
	assert.Contains(t, out, "path=/pot")
}

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(nil) })

	h := NewRecoverMiddleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Contains(t, buf.String(), "boom")
}

func TestScreenRecoversBrowserMiddlewarePanic(t *testing.T) {
	log.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { log.SetOutput(nil) })

	failing := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("cannot issue browser id")
		})
	}
	h := wrapScreen(http.NotFoundHandler(), failing)

	w := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestResponseWriterDelegator(t *testing.T) {
	rec := httptest.NewRecorder()
	w := wrapResponseWriter(rec)

	assert.Equal(t, http.StatusOK, w.Status())
	w.WriteHeader(http.StatusCreated)
	w.WriteHeader(http.StatusInternalServerError)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusCreated, w.Status())
	assert.Equal(t, 5, w.BytesWritten())
	assert.Equal(t, rec, w.Unwrap())
}

func TestBrowserMiddleware(t *testing.T) {
	t.Setenv("AUTHFRONT_ENV", "development")
	signer := crypto.NewTokenSigner([]byte(strings.Repeat("s", 32)), 0)

	var got BrowserID
	h := NewBrowserMiddleware(signer, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := BrowserFromContext(r.Context())
		require.True(t, ok)
		got = id
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	first := got
	assert.NotEmpty(t, first.Device)
	assert.NotEmpty(t, first.Tab)
	assert.NotEqual(t, first.Device, first.Tab)

	// Replaying the issued cookies keeps the identity
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, first, got)
	assert.Empty(t, w.Result().Cookies())

	// A cookie signed with another key is rejected
	other := crypto.NewTokenSigner([]byte(strings.Repeat("x", 32)), 0)
	forged, err := other.Sign(first.Device)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: cookie.DeviceCookie, Value: forged})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEqual(t, first.Device, got.Device)
}
