package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// FakeAnonKey is the project key FakeGoTrue expects on every request
const FakeAnonKey = "test-anon-key"

var fakeSigningKey = []byte("fake-gotrue-signing-key")

// Endpoint keys accepted by FakeGoTrue.Calls and FakeGoTrue.SetError
const (
	EndpointSignUp    = "signup"
	EndpointPassword  = "token:password"
	EndpointPKCE      = "token:pkce"
	EndpointRecover   = "recover"
	EndpointGetUser   = "user:get"
	EndpointUpdate    = "user:put"
	EndpointLogout    = "logout"
	EndpointAuthorize = "authorize"
)

type fakeUser struct {
	ID        string
	Email     string
	Password  string
	Confirmed bool
	CreatedAt time.Time
}

type fakeCode struct {
	email     string
	challenge string
	method    string
}

type fakeError struct {
	status int
	body   string
}

// RecoverRequest is what FakeGoTrue saw on POST /recover
type RecoverRequest struct {
	Email      string
	RedirectTo string
	Challenge  string
}

// FakeGoTrue is an in-process stand-in for a GoTrue auth API, mounted at
// /auth/v1 like the hosted service
type FakeGoTrue struct {
	*httptest.Server

	// AutoConfirm makes sign-up return a session right away
	AutoConfirm bool

	mu       sync.Mutex
	users    map[string]*fakeUser
	tokens   map[string]string
	codes    map[string]fakeCode
	calls    map[string]int
	errors   map[string]fakeError
	recovers []RecoverRequest
}

// NewFakeGoTrue starts a fake provider closed at the end of the test
func NewFakeGoTrue(t testing.TB) *FakeGoTrue {
	f := &FakeGoTrue{
		users:  make(map[string]*fakeUser),
		tokens: make(map[string]string),
		codes:  make(map[string]fakeCode),
		calls:  make(map[string]int),
		errors: make(map[string]fakeError),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// AddUser creates a confirmed user
func (f *FakeGoTrue) AddUser(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = &fakeUser{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  password,
		Confirmed: true,
		CreatedAt: time.Now().UTC(),
	}
}

// Password returns the current password of email
func (f *FakeGoTrue) Password(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		return u.Password
	}
	return ""
}

// HasUser reports whether email is registered
func (f *FakeGoTrue) HasUser(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[email]
	return ok
}

// Calls returns how many times endpoint was hit
func (f *FakeGoTrue) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// SetError makes endpoint answer with status and a GoTrue error carrying msg
// until ClearErrors is called
func (f *FakeGoTrue) SetError(endpoint string, status int, msg string) {
	body, _ := json.Marshal(map[string]any{"code": status, "error_code": "test_error", "msg": msg})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[endpoint] = fakeError{status: status, body: string(body)}
}

func (f *FakeGoTrue) ClearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = make(map[string]fakeError)
}

// Recovers returns the recovery requests received so far
func (f *FakeGoTrue) Recovers() []RecoverRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecoverRequest(nil), f.recovers...)
}

// IssueCode simulates the provider redirecting back after the user
// authorized a flow started with challenge. method is recorded in the
// access token's amr ("oauth", "recovery").
func (f *FakeGoTrue) IssueCode(email, challenge, method string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; !ok {
		f.users[email] = &fakeUser{ID: uuid.NewString(), Email: email, Confirmed: true, CreatedAt: time.Now().UTC()}
	}
	code := uuid.NewString()
	f.codes[code] = fakeCode{email: email, challenge: challenge, method: method}
	return code
}

func (f *FakeGoTrue) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != FakeAnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No API key found in request"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/auth/v1")
	var endpoint string
	switch {
	case r.Method == http.MethodPost && path == "/signup":
		endpoint = EndpointSignUp
	case r.Method == http.MethodPost && path == "/token":
		endpoint = "token:" + r.URL.Query().Get("grant_type")
	case r.Method == http.MethodPost && path == "/recover":
		endpoint = EndpointRecover
	case r.Method == http.MethodGet && path == "/user":
		endpoint = EndpointGetUser
	case r.Method == http.MethodPut && path == "/user":
		endpoint = EndpointUpdate
	case r.Method == http.MethodPost && path == "/logout":
		endpoint = EndpointLogout
	case r.Method == http.MethodGet && path == "/authorize":
		endpoint = EndpointAuthorize
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "msg": "Not Found"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[endpoint]++
	if e, ok := f.errors[endpoint]; ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(e.status)
		_, _ = w.Write([]byte(e.body))
		return
	}

	switch endpoint {
	case EndpointSignUp:
		f.signUp(w, r)
	case EndpointPassword:
		f.passwordGrant(w, r)
	case EndpointPKCE:
		f.pkceGrant(w, r)
	case EndpointRecover:
		f.recoverPassword(w, r)
	case EndpointGetUser:
		f.getUser(w, r)
	case EndpointUpdate:
		f.updateUser(w, r)
	case EndpointLogout:
		f.logout(w, r)
	case EndpointAuthorize:
		w.Header().Set("Location", r.URL.Query().Get("redirect_to"))
		w.WriteHeader(http.StatusFound)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type", "error_description": "unsupported grant type"})
	}
}

func (f *FakeGoTrue) signUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "Could not read request body"})
		return
	}
	if _, exists := f.users[body.Email]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code": 422, "error_code": "user_already_exists", "msg": "User already registered",
		})
		return
	}
	if len(body.Password) < 6 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters.",
		})
		return
	}

	u := &fakeUser{
		ID:        uuid.NewString(),
		Email:     body.Email,
		Password:  body.Password,
		Confirmed: f.AutoConfirm,
		CreatedAt: time.Now().UTC(),
	}
	f.users[u.Email] = u

	if f.AutoConfirm {
		writeJSON(w, http.StatusOK, f.session(u, "password"))
		return
	}
	user := userJSON(u)
	user["confirmation_sent_at"] = time.Now().UTC()
	writeJSON(w, http.StatusOK, user)
}

func (f *FakeGoTrue) passwordGrant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	u, ok := f.users[body.Email]
	if !ok || u.Password != body.Password {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials",
		})
		return
	}
	if !u.Confirmed {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code": 400, "error_code": "email_not_confirmed", "msg": "Email not confirmed",
		})
		return
	}
	writeJSON(w, http.StatusOK, f.session(u, "password"))
}

func (f *FakeGoTrue) pkceGrant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AuthCode     string `json:"auth_code"`
		CodeVerifier string `json:"code_verifier"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	c, ok := f.codes[body.AuthCode]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"code": 404, "error_code": "flow_state_not_found", "msg": "invalid flow state, no valid flow state found",
		})
		return
	}
	if oauth2.S256ChallengeFromVerifier(body.CodeVerifier) != c.challenge {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"code": 403, "error_code": "bad_code_verifier", "msg": "code challenge does not match previously saved code verifier",
		})
		return
	}
	delete(f.codes, body.AuthCode)
	writeJSON(w, http.StatusOK, f.session(f.users[c.email], c.method))
}

func (f *FakeGoTrue) recoverPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string `json:"email"`
		Challenge string `json:"code_challenge"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.recovers = append(f.recovers, RecoverRequest{
		Email:      body.Email,
		RedirectTo: r.URL.Query().Get("redirect_to"),
		Challenge:  body.Challenge,
	})
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *FakeGoTrue) getUser(w http.ResponseWriter, r *http.Request) {
	u := f.bearerUser(w, r)
	if u == nil {
		return
	}
	writeJSON(w, http.StatusOK, userJSON(u))
}

func (f *FakeGoTrue) updateUser(w http.ResponseWriter, r *http.Request) {
	u := f.bearerUser(w, r)
	if u == nil {
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Password != "" {
		if body.Password == u.Password {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"code": 422, "error_code": "same_password", "msg": "New password should be different from the old password.",
			})
			return
		}
		u.Password = body.Password
	}
	writeJSON(w, http.StatusOK, userJSON(u))
}

func (f *FakeGoTrue) logout(w http.ResponseWriter, r *http.Request) {
	u := f.bearerUser(w, r)
	if u == nil {
		return
	}
	for tok, email := range f.tokens {
		if email == u.Email {
			delete(f.tokens, tok)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeGoTrue) bearerUser(w http.ResponseWriter, r *http.Request) *fakeUser {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	email, known := f.tokens[tok]
	if !ok || !known {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"code": 403, "error_code": "bad_jwt", "msg": "invalid JWT: unable to parse or verify signature",
		})
		return nil
	}
	return f.users[email]
}

func (f *FakeGoTrue) session(u *fakeUser, method string) map[string]any {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":        u.ID,
		"email":      u.Email,
		"role":       "authenticated",
		"aud":        "authenticated",
		"session_id": uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(time.Hour).Unix(),
		"amr":        []map[string]any{{"method": method, "timestamp": now.Unix()}},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
	if err != nil {
		panic(err)
	}
	f.tokens[token] = u.Email

	return map[string]any{
		"access_token":  token,
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    now.Add(time.Hour).Unix(),
		"refresh_token": uuid.NewString(),
		"user":          userJSON(u),
	}
}

func userJSON(u *fakeUser) map[string]any {
	m := map[string]any{
		"id":         u.ID,
		"aud":        "authenticated",
		"role":       "authenticated",
		"email":      u.Email,
		"created_at": u.CreatedAt,
		"updated_at": time.Now().UTC(),
	}
	if u.Confirmed {
		m["email_confirmed_at"] = u.CreatedAt
	}
	return m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
