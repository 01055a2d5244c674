package server

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	browserKey
)

// BrowserID identifies the browser a request came from
type BrowserID struct {
	// Device scopes the local storage area and the provider SDK state
	Device string
	// Tab scopes the session storage area
	Tab string
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the id assigned by the request-id middleware
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func withBrowser(ctx context.Context, id BrowserID) context.Context {
	return context.WithValue(ctx, browserKey, id)
}

// BrowserFromContext returns the browser identity set by the browser middleware
func BrowserFromContext(ctx context.Context) (BrowserID, bool) {
	id, ok := ctx.Value(browserKey).(BrowserID)
	return id, ok
}
