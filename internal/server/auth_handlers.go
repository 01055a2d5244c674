package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/authfront/internal/alert"
	"github.com/dgellow/authfront/internal/config"
	"github.com/dgellow/authfront/internal/crypto"
	"github.com/dgellow/authfront/internal/emailutil"
	"github.com/dgellow/authfront/internal/forms"
	"github.com/dgellow/authfront/internal/idp"
	jsonwriter "github.com/dgellow/authfront/internal/json"
	"github.com/dgellow/authfront/internal/log"
	"github.com/dgellow/authfront/internal/storage"
)

// Screen paths
const (
	PathHome       = "/"
	PathSuccess    = "/success"
	PathForgotPass = "/forgotpass"
	PathChangePass = "/changepass"
)

const csrfField = "csrf_token"

// msgProviderDisabled is what GoTrue answers for a provider that is not
// enabled on the project
const msgProviderDisabled = "Unsupported provider: provider is not enabled"

// AuthHandlersConfig holds the settings the screens need
type AuthHandlersConfig struct {
	AppName  string
	BaseURL  string
	Storage  storage.BrowserOptions
	Provider config.ProviderConfig
}

// AuthHandlers serves the auth screens. Per-browser state lives in the
// storage, the alert board and the event hub, keyed by the browser ids the
// browser middleware put in the request context.
type AuthHandlers struct {
	client *idp.Client
	hub    *idp.Hub
	store  storage.Storage
	alerts *alert.Board
	csrf   crypto.CSRFProtection
	cfg    AuthHandlersConfig
	now    func() time.Time
}

// NewAuthHandlers creates the screen handlers
func NewAuthHandlers(
	client *idp.Client,
	hub *idp.Hub,
	store storage.Storage,
	alerts *alert.Board,
	csrf crypto.CSRFProtection,
	cfg AuthHandlersConfig,
) *AuthHandlers {
	return &AuthHandlers{
		client: client,
		hub:    hub,
		store:  store,
		alerts: alerts,
		csrf:   csrf,
		cfg:    cfg,
		now:    time.Now,
	}
}

// browserSession is everything one request needs about its browser
type browserSession struct {
	id      BrowserID
	auth    *idp.Auth
	storage storage.Browser
}

func (h *AuthHandlers) browser(w http.ResponseWriter, r *http.Request) (*browserSession, bool) {
	id, ok := BrowserFromContext(r.Context())
	if !ok {
		log.LogErrorWithFields("auth", "Request reached a screen without browser identity", map[string]any{
			"path": r.URL.Path,
		})
		writeErrorPage(w, http.StatusInternalServerError)
		return nil, false
	}

	b := storage.ForBrowser(h.store, id.Device, id.Tab, h.cfg.Storage)
	return &browserSession{
		id:      id,
		auth:    idp.NewAuth(h.client, h.hub, id.Device, b.Local),
		storage: b,
	}, true
}

// pageData fills the fields every page shares
func (h *AuthHandlers) pageData(w http.ResponseWriter, r *http.Request, b *browserSession, title string) (PageData, bool) {
	token, err := h.csrf.Generate()
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to generate CSRF token", map[string]any{
			"error": err.Error(),
		})
		writeErrorPage(w, http.StatusInternalServerError)
		return PageData{}, false
	}

	a := h.alerts.Get(b.id.Device)
	return PageData{
		AppName:   h.cfg.AppName,
		Title:     title,
		Path:      r.URL.Path,
		CSRFToken: token,
		Alert: AlertView{
			Message:     a.Message,
			Visible:     a.Visible,
			RemainingMs: a.Remaining(h.now()).Milliseconds(),
		},
	}, true
}

// parseForm parses a POST body and checks its CSRF token
func (h *AuthHandlers) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		jsonwriter.WriteBadRequest(w, "Bad request")
		return false
	}
	if !h.csrf.Validate(r.PostForm.Get(csrfField)) {
		log.LogWarnWithFields("auth", "Rejected form with invalid CSRF token", map[string]any{
			"path": r.URL.Path,
		})
		jsonwriter.WriteForbidden(w, "Invalid CSRF token")
		return false
	}
	return true
}

func (h *AuthHandlers) redirectTo() string {
	return h.cfg.BaseURL + "/"
}

// navigation maps the auth events raised while handling a request to the
// screen the browser goes to next. The last event wins.
func navigation(events []idp.Event) string {
	var dest string
	for _, ev := range events {
		switch ev.Kind {
		case idp.EventSignedIn:
			dest = PathSuccess
		case idp.EventSignedOut:
			dest = PathHome
		case idp.EventPasswordRecovery:
			dest = PathChangePass
		}
	}
	return dest
}

func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// HomeHandler renders the sign-in or sign-up form. It is also the landing
// page of provider redirects, which carry either ?code= or ?error=.
func (h *AuthHandlers) HomeHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	if code := query.Get("code"); code != "" {
		h.exchangeCode(w, r, b, code)
		return
	}
	if msg := providerRedirectError(query); msg != "" {
		log.LogWarnWithFields("auth", "Provider redirected with an error", map[string]any{
			"error": query.Get("error"),
			"code":  query.Get("error_code"),
		})
		h.alerts.Show(b.id.Device, msg)
		seeOther(w, r, PathHome)
		return
	}

	h.renderAuth(w, r, b, AuthPageData{Mode: forms.ParseMode(query.Get("mode"))})
}

func providerRedirectError(query url.Values) string {
	if msg := query.Get("error_description"); msg != "" {
		return msg
	}
	return query.Get("error")
}

func (h *AuthHandlers) exchangeCode(w http.ResponseWriter, r *http.Request, b *browserSession, code string) {
	sub := b.auth.OnAuthStateChange()
	defer sub.Unsubscribe()

	if _, err := b.auth.ExchangeCodeForSession(r.Context(), code); err != nil {
		log.LogWarnWithFields("auth", "Code exchange failed", map[string]any{
			"error": err.Error(),
		})
		h.alerts.Show(b.id.Device, err.Error())
		seeOther(w, r, PathHome)
		return
	}

	dest := navigation(sub.Drain())
	if dest == "" {
		dest = PathHome
	}
	seeOther(w, r, dest)
}

// SubmitHandler handles both credential forms and the Google button
func (h *AuthHandlers) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	mode := forms.ParseMode(r.PostForm.Get("mode"))
	switch r.PostForm.Get("action") {
	case "google":
		h.signInWithOAuth(w, r, b, mode, "google")
	default:
		if mode == forms.ModeSignUp {
			h.signUp(w, r, b)
		} else {
			h.signIn(w, r, b)
		}
	}
}

func (h *AuthHandlers) signIn(w http.ResponseWriter, r *http.Request, b *browserSession) {
	creds := forms.ParseCredentials(r.PostForm)
	page := AuthPageData{Mode: forms.ModeSignIn, Email: creds.Email, Remember: creds.Remember}

	if errs := forms.ValidateSignIn(creds); !errs.Valid() {
		page.Errors = errs
		h.renderAuth(w, r, b, page)
		return
	}

	ctx := r.Context()
	sub := b.auth.OnAuthStateChange()
	defer sub.Unsubscribe()

	session, err := b.auth.SignInWithPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		log.LogInfoWithFields("auth", "Sign-in rejected", map[string]any{
			"email": emailutil.Redact(creds.Email),
			"error": err.Error(),
		})
		h.alerts.Show(b.id.Device, err.Error())
		h.renderAuth(w, r, b, page)
		return
	}

	h.alerts.Show(b.id.Device, forms.MsgLoginSuccess)
	log.LogInfoWithFields("auth", "User signed in", map[string]any{
		"email":    emailutil.Redact(creds.Email),
		"remember": creds.Remember,
	})

	// The login stands even when the record cannot be written
	if raw, err := session.Raw(); err != nil {
		log.LogErrorWithFields("auth", "Failed to encode session", map[string]any{
			"error": err.Error(),
		})
	} else if err := b.storage.SaveAuthToken(ctx, raw, creds.Remember); err != nil {
		log.LogErrorWithFields("auth", "Failed to store auth token", map[string]any{
			"error":    err.Error(),
			"remember": creds.Remember,
		})
	}

	dest := navigation(sub.Drain())
	if dest == "" {
		dest = PathSuccess
	}
	seeOther(w, r, dest)
}

func (h *AuthHandlers) signUp(w http.ResponseWriter, r *http.Request, b *browserSession) {
	creds := forms.ParseCredentials(r.PostForm)
	page := AuthPageData{Mode: forms.ModeSignUp, Email: creds.Email}

	if errs := forms.ValidateSignUp(creds); !errs.Valid() {
		page.Errors = errs
		h.renderAuth(w, r, b, page)
		return
	}

	sub := b.auth.OnAuthStateChange()
	defer sub.Unsubscribe()

	_, session, err := b.auth.SignUp(r.Context(), creds.Email, creds.Password, h.redirectTo())
	if err != nil {
		log.LogInfoWithFields("auth", "Sign-up rejected", map[string]any{
			"email": emailutil.Redact(creds.Email),
			"error": err.Error(),
		})
		h.alerts.Show(b.id.Device, forms.SignUpErrorMessage(err.Error()))
		h.renderAuth(w, r, b, page)
		return
	}

	h.alerts.Show(b.id.Device, forms.MsgSignUpSuccess)
	if dest := navigation(sub.Drain()); dest != "" {
		seeOther(w, r, dest)
		return
	}
	if session != nil {
		seeOther(w, r, PathSuccess)
		return
	}

	h.renderAuth(w, r, b, AuthPageData{Mode: forms.ModeSignUp})
}

func (h *AuthHandlers) signInWithOAuth(w http.ResponseWriter, r *http.Request, b *browserSession, mode forms.Mode, provider string) {
	if !h.cfg.Provider.HasOAuthProvider(provider) {
		h.alerts.Show(b.id.Device, msgProviderDisabled)
		h.renderAuth(w, r, b, AuthPageData{Mode: mode})
		return
	}

	authURL, err := b.auth.SignInWithOAuth(r.Context(), provider, h.redirectTo())
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to start OAuth sign-in", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
		h.alerts.Show(b.id.Device, err.Error())
		h.renderAuth(w, r, b, AuthPageData{Mode: mode})
		return
	}

	log.LogDebugWithFields("auth", "Redirecting to OAuth provider", map[string]any{
		"provider": provider,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *AuthHandlers) renderAuth(w http.ResponseWriter, r *http.Request, b *browserSession, page AuthPageData) {
	title := "Log in"
	if page.Mode == forms.ModeSignUp {
		title = "Sign up"
	}
	base, ok := h.pageData(w, r, b, title)
	if !ok {
		return
	}
	page.PageData = base
	page.SignIn = page.Mode != forms.ModeSignUp
	page.GoogleEnabled = h.cfg.Provider.HasOAuthProvider("google")
	renderPage(w, authPageTemplate, page)
}

// SuccessHandler shows the post-login screen
func (h *AuthHandlers) SuccessHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}

	var email string
	user, err := b.auth.GetUser(r.Context())
	if err != nil {
		log.LogDebugWithFields("auth", "No current user on success page", map[string]any{
			"error": err.Error(),
		})
	} else {
		email = user.Email
		log.LogInfoWithFields("auth", "Current user", map[string]any{
			"user_id": user.ID,
			"domain":  emailutil.ExtractDomain(user.Email),
			"role":    user.Role,
		})
	}

	base, ok := h.pageData(w, r, b, "Welcome")
	if !ok {
		return
	}
	renderPage(w, successPageTemplate, SuccessPageData{PageData: base, Email: email})
}

// SignOutHandler ends the session. A provider failure is only logged and
// the browser stays on the success screen.
func (h *AuthHandlers) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	ctx := r.Context()
	sub := b.auth.OnAuthStateChange()
	defer sub.Unsubscribe()

	if err := b.auth.SignOut(ctx); err != nil {
		log.LogErrorWithFields("auth", "Sign-out failed", map[string]any{
			"error": err.Error(),
		})
		seeOther(w, r, PathSuccess)
		return
	}
	if err := b.storage.ClearAuthToken(ctx); err != nil {
		log.LogWarnWithFields("auth", "Failed to clear auth token", map[string]any{
			"error": err.Error(),
		})
	}

	dest := navigation(sub.Drain())
	if dest == "" {
		dest = PathHome
	}
	seeOther(w, r, dest)
}

// ForgotPasswordHandler serves the password reset request screen
func (h *AuthHandlers) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}

	page := ForgotPageData{}
	if r.Method == http.MethodPost {
		if !h.parseForm(w, r) {
			return
		}
		page.Email = r.PostForm.Get(forms.FieldEmail)
		page.Errors = forms.ValidateResetEmail(page.Email)

		if page.Errors.Valid() {
			if err := b.auth.ResetPasswordForEmail(r.Context(), page.Email, h.redirectTo()); err != nil {
				log.LogInfoWithFields("auth", "Password reset request rejected", map[string]any{
					"email": emailutil.Redact(page.Email),
					"error": err.Error(),
				})
				h.alerts.Show(b.id.Device, err.Error())
			} else {
				log.LogInfoWithFields("auth", "Password reset email requested", map[string]any{
					"email": emailutil.Redact(page.Email),
				})
				h.alerts.Show(b.id.Device, forms.MsgResetEmailSent)
			}
		}
	}

	base, ok := h.pageData(w, r, b, "Reset Password")
	if !ok {
		return
	}
	page.PageData = base
	renderPage(w, forgotPageTemplate, page)
}

// ChangePasswordHandler serves the change password screen
func (h *AuthHandlers) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}

	page := ChangePageData{}
	if r.Method == http.MethodPost {
		if !h.parseForm(w, r) {
			return
		}
		h.alerts.Dismiss(b.id.Device)
		change := forms.ParsePasswordChange(r.PostForm)
		page.Errors = change.Validate()

		if change.Mismatch() {
			h.alerts.Show(b.id.Device, forms.MsgPasswordsMismatch)
		}

		if change.Ready() {
			_, err := b.auth.UpdateUser(r.Context(), idp.UserAttributes{Password: change.New})
			if err == nil {
				log.LogInfoWithFields("auth", "Password updated", nil)
				h.alerts.Show(b.id.Device, forms.MsgPasswordUpdated)
				seeOther(w, r, PathHome)
				return
			}
			log.LogInfoWithFields("auth", "Password update rejected", map[string]any{
				"error": err.Error(),
			})
			h.alerts.Show(b.id.Device, err.Error())
		}
	}

	base, ok := h.pageData(w, r, b, "Change Password")
	if !ok {
		return
	}
	page.PageData = base
	renderPage(w, changePageTemplate, page)
}

// DismissAlertHandler hides the browser's alert and returns to the page the
// dismissal came from
func (h *AuthHandlers) DismissAlertHandler(w http.ResponseWriter, r *http.Request) {
	b, ok := h.browser(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	h.alerts.Dismiss(b.id.Device)
	seeOther(w, r, safeReturnPath(r.PostForm.Get("return")))
}

// safeReturnPath only accepts local absolute paths
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return PathHome
	}
	return p
}
