package server

import (
	"net/http"
	"time"

	"github.com/dgellow/authfront/internal/crypto"
)

// NewRouter maps the four screens plus the plumbing endpoints. Any other
// path is redirected to the sign-in screen.
func NewRouter(h *AuthHandlers, signer crypto.TokenSigner, deviceMaxAge time.Duration) http.Handler {
	mux := http.NewServeMux()

	browser := NewBrowserMiddleware(signer, deviceMaxAge)
	screen := func(fn http.HandlerFunc) http.Handler {
		return wrapScreen(fn, browser)
	}

	mux.Handle("GET /health", NewHealthHandler())

	mux.Handle("GET /{$}", screen(h.HomeHandler))
	mux.Handle("POST /{$}", screen(h.SubmitHandler))
	mux.Handle("GET "+PathSuccess, screen(h.SuccessHandler))
	mux.Handle("POST /signout", screen(h.SignOutHandler))
	mux.Handle("GET "+PathForgotPass, screen(h.ForgotPasswordHandler))
	mux.Handle("POST "+PathForgotPass, screen(h.ForgotPasswordHandler))
	mux.Handle("GET "+PathChangePass, screen(h.ChangePasswordHandler))
	mux.Handle("POST "+PathChangePass, screen(h.ChangePasswordHandler))
	mux.Handle("POST /alert/dismiss", screen(h.DismissAlertHandler))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, PathHome, http.StatusFound)
	})

	return ChainMiddleware(mux,
		NewLoggerMiddleware("http"),
		NewRequestIDMiddleware(),
	)
}

// wrapScreen puts browser identification in front of a screen handler, with
// panic recovery outermost so failures while issuing ids are recovered too.
func wrapScreen(next http.Handler, browser MiddlewareFunc) http.Handler {
	return ChainMiddleware(next,
		browser,
		NewRecoverMiddleware("screen"),
	)
}
