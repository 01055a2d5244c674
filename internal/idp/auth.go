package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgellow/authfront/internal/emailutil"
	"github.com/dgellow/authfront/internal/log"
)

// Storage keys used by Auth inside the browser's local area
const (
	SessionKey      = "idp.session"
	CodeVerifierKey = SessionKey + "-code-verifier"

	recoveryTag = "/" + string(EventPasswordRecovery)
)

// Store is the per-browser key/value area Auth persists its state in
type Store interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// ErrVerifierMissing is returned when a code arrives for a flow this
// browser did not start
var ErrVerifierMissing = &Error{
	Code:    "pkce_verifier_missing",
	Message: "PKCE code verifier not found in storage. Sign in again from this browser.",
}

// Auth is the provider SDK as seen by one browser. It keeps the current
// session and PKCE verifier in the browser's store and announces
// auth-state changes on the hub.
type Auth struct {
	client *Client
	hub    *Hub
	owner  string
	store  Store
}

// NewAuth binds client and hub to the browser identified by owner
func NewAuth(client *Client, hub *Hub, owner string, store Store) *Auth {
	return &Auth{client: client, hub: hub, owner: owner, store: store}
}

// OnAuthStateChange subscribes to this browser's auth events. Callers must
// Unsubscribe.
func (a *Auth) OnAuthStateChange() *Subscription {
	return a.hub.Subscribe(a.owner)
}

// SignUp registers a new user. A non-nil session means the provider
// confirmed the account immediately and the browser is now signed in.
func (a *Auth) SignUp(ctx context.Context, email, password, redirectTo string) (*User, *Session, error) {
	user, session, err := a.client.SignUp(ctx, email, password, redirectTo)
	if err != nil {
		return nil, nil, err
	}
	if session != nil {
		if err := a.saveSession(ctx, session); err != nil {
			return nil, nil, err
		}
		a.emit(EventSignedIn, session)
	}

	log.LogInfoWithFields("idp", "User signed up", map[string]any{
		"email":     emailutil.Redact(email),
		"confirmed": session != nil,
	})
	return user, session, nil
}

// SignInWithPassword signs the browser in with email and password
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session, err := a.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := a.saveSession(ctx, session); err != nil {
		return nil, err
	}
	a.emit(EventSignedIn, session)
	return session, nil
}

// SignInWithOAuth starts an OAuth flow with provider and returns the URL
// the browser must be sent to
func (a *Auth) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	challenge, err := a.startPKCE(ctx, false)
	if err != nil {
		return "", err
	}
	return a.client.AuthorizeURL(provider, redirectTo, challenge), nil
}

// ResetPasswordForEmail sends a recovery link. Following the link lands on
// redirectTo with a code whose exchange emits PASSWORD_RECOVERY.
func (a *Auth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	challenge, err := a.startPKCE(ctx, true)
	if err != nil {
		return err
	}
	return a.client.Recover(ctx, email, redirectTo, challenge)
}

// ExchangeCodeForSession completes an OAuth or recovery flow
func (a *Auth) ExchangeCodeForSession(ctx context.Context, code string) (*Session, error) {
	stored, found, err := a.store.GetItem(ctx, CodeVerifierKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read code verifier: %w", err)
	}
	if !found || stored == "" {
		return nil, ErrVerifierMissing
	}
	verifier, recovery := strings.CutSuffix(stored, recoveryTag)

	session, err := a.client.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	if err := a.store.RemoveItem(ctx, CodeVerifierKey); err != nil {
		log.LogWarnWithFields("idp", "Failed to remove code verifier", map[string]any{
			"error": err.Error(),
		})
	}
	if err := a.saveSession(ctx, session); err != nil {
		return nil, err
	}

	if !recovery {
		if claims, err := session.Claims(); err == nil && claims.HasMethod("recovery") {
			recovery = true
		}
	}
	if recovery {
		a.emit(EventPasswordRecovery, session)
	} else {
		a.emit(EventSignedIn, session)
	}
	return session, nil
}

// Session returns the stored session, or nil when signed out
func (a *Auth) Session(ctx context.Context) (*Session, error) {
	raw, found, err := a.store.GetItem(ctx, SessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !found {
		return nil, nil
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		// A corrupt record is treated as signed out
		log.LogWarnWithFields("idp", "Discarding unreadable session", map[string]any{
			"error": err.Error(),
		})
		return nil, nil
	}
	return &session, nil
}

// GetUser fetches the user of the current session from the provider
func (a *Auth) GetUser(ctx context.Context) (*User, error) {
	session, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionMissing
	}
	return a.client.GetUser(ctx, session)
}

// UpdateUser changes attributes of the signed-in user
func (a *Auth) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	session, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionMissing
	}

	user, err := a.client.UpdateUser(ctx, session, attrs)
	if err != nil {
		return nil, err
	}

	session.User = user
	session.raw = nil
	if err := a.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return user, nil
}

// SignOut revokes the session with the provider and forgets it locally
func (a *Auth) SignOut(ctx context.Context) error {
	session, err := a.Session(ctx)
	if err != nil {
		return err
	}
	if session != nil {
		if err := a.client.Logout(ctx, session); err != nil {
			return err
		}
	}
	if err := a.store.RemoveItem(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	a.emit(EventSignedOut, nil)
	return nil
}

func (a *Auth) startPKCE(ctx context.Context, recovery bool) (string, error) {
	verifier, challenge := newPKCE()
	if recovery {
		verifier += recoveryTag
	}
	if err := a.store.SetItem(ctx, CodeVerifierKey, verifier); err != nil {
		return "", fmt.Errorf("failed to store code verifier: %w", err)
	}
	return challenge, nil
}

func (a *Auth) saveSession(ctx context.Context, session *Session) error {
	raw, err := session.Raw()
	if err != nil {
		return err
	}
	if err := a.store.SetItem(ctx, SessionKey, string(raw)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (a *Auth) emit(kind EventKind, session *Session) {
	log.LogDebugWithFields("idp", "Auth state changed", map[string]any{
		"event": string(kind),
	})
	a.hub.Publish(a.owner, Event{Kind: kind, Session: session})
}
