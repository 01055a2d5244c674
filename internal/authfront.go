package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/authfront/internal/alert"
	"github.com/dgellow/authfront/internal/config"
	"github.com/dgellow/authfront/internal/crypto"
	"github.com/dgellow/authfront/internal/idp"
	"github.com/dgellow/authfront/internal/log"
	"github.com/dgellow/authfront/internal/server"
	"github.com/dgellow/authfront/internal/storage"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// HKDF info strings separating the keys derived from the configured secrets
const (
	cookieKeyInfo  = "authfront/browser-cookie"
	csrfKeyInfo    = "authfront/csrf"
	storageKeyInfo = "authfront/storage"
)

// AuthFront is the complete application: HTTP screens, storage and the
// background cleanup of expired browser records
type AuthFront struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	storage    storage.Storage
	cleanup    *storage.CleanupManager
	alerts     *alert.Board
}

// NewAuthFront builds the application with all dependencies wired
func NewAuthFront(ctx context.Context, cfg config.Config) (*AuthFront, error) {
	log.LogInfoWithFields("authfront", "Building application", map[string]any{
		"baseURL":  cfg.Server.BaseURL,
		"provider": cfg.Provider.URL,
		"storage":  string(cfg.Storage.Kind),
	})

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	cookieKey, err := crypto.DeriveKey([]byte(cfg.Session.Secret), cookieKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to derive cookie key: %w", err)
	}
	csrfKey, err := crypto.DeriveKey([]byte(cfg.Session.Secret), csrfKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to derive CSRF key: %w", err)
	}

	client := idp.NewClient(cfg.Provider.URL, string(cfg.Provider.AnonKey), idp.WithTimeout(cfg.Provider.Timeout))
	alerts := alert.NewBoard(cfg.Alert.Timeout)

	handlers := server.NewAuthHandlers(
		client,
		idp.NewHub(),
		store,
		alerts,
		crypto.NewCSRFProtection(csrfKey, cfg.Session.TabTTL),
		server.AuthHandlersConfig{
			AppName: cfg.Server.Name,
			BaseURL: cfg.Server.BaseURL,
			Storage: storage.BrowserOptions{
				RememberFor: cfg.Session.RememberFor,
				TabTTL:      cfg.Session.TabTTL,
			},
			Provider: cfg.Provider,
		},
	)
	handler := server.NewRouter(handlers, crypto.NewTokenSigner(cookieKey, 0), cfg.Session.RememberFor)

	return &AuthFront{
		config:     cfg,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, cfg.Server.Addr),
		storage:    store,
		cleanup:    storage.NewCleanupManager(store, cfg.Session.CleanupInterval),
		alerts:     alerts,
	}, nil
}

// Handler returns the root HTTP handler
func (a *AuthFront) Handler() http.Handler {
	return a.handler
}

// Run serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the
// server fails, then shuts everything down within 30 seconds
func (a *AuthFront) Run(ctx context.Context) error {
	log.LogInfoWithFields("authfront", "Starting application", map[string]any{
		"addr":          a.config.Server.Addr,
		"alert_timeout": a.alerts.Timeout().String(),
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	a.cleanup.Start(gctx)

	g.Go(func() error {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		reason := "shutdown requested"
		if cause := context.Cause(gctx); cause != nil && !errors.Is(cause, context.Canceled) {
			reason = cause.Error()
		}
		log.LogInfoWithFields("authfront", "Starting graceful shutdown", map[string]any{
			"reason":  reason,
			"timeout": shutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := a.httpServer.Stop(shutdownCtx)
		a.cleanup.Stop()
		a.alerts.Close()
		return err
	})

	err := g.Wait()
	if cerr := a.storage.Close(); cerr != nil {
		log.LogWarnWithFields("authfront", "Failed to close storage", map[string]any{
			"error": cerr.Error(),
		})
	}

	if err != nil {
		log.LogErrorWithFields("authfront", "Application stopped with error", map[string]any{
			"error": err.Error(),
		})
		return err
	}
	log.LogInfoWithFields("authfront", "Application shutdown complete", nil)
	return nil
}

// setupStorage creates the storage backend selected in the configuration
func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.Storage.Kind == config.StorageKindFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.Storage.GCPProject,
			"database":   cfg.Storage.FirestoreDatabase,
			"collection": cfg.Storage.FirestoreCollection,
		})
		key, err := crypto.DeriveKey([]byte(cfg.Storage.EncryptionKey), storageKeyInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to derive storage key: %w", err)
		}
		encryptor, err := crypto.NewEncryptor(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		firestoreStorage, err := storage.NewFirestoreStorage(
			ctx,
			cfg.Storage.GCPProject,
			cfg.Storage.FirestoreDatabase,
			cfg.Storage.FirestoreCollection,
			encryptor,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore storage: %w", err)
		}
		return firestoreStorage, nil
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStorage(), nil
}
