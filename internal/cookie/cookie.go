package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/authfront/internal/envutil"
	"github.com/dgellow/authfront/internal/log"
)

// Cookie names used by authfront
const (
	// DeviceCookie identifies the browser across restarts and scopes the
	// local storage area.
	DeviceCookie = "authfront_device"
	// TabCookie lives for the browser session and scopes the session
	// storage area.
	TabCookie = "authfront_tab"
)

func base(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	}
}

// SetDevice sets the persistent device cookie
func SetDevice(w http.ResponseWriter, value string, maxAge time.Duration) {
	c := base(DeviceCookie, value)
	c.MaxAge = int(maxAge.Seconds())
	http.SetCookie(w, c)

	log.LogTraceWithFields("cookie", "Device cookie set", map[string]any{
		"maxAge": maxAge.String(),
		"secure": c.Secure,
	})
}

// SetTab sets the tab cookie. It carries no Max-Age so the browser drops it
// when the browsing session ends.
func SetTab(w http.ResponseWriter, value string) {
	c := base(TabCookie, value)
	http.SetCookie(w, c)

	log.LogTraceWithFields("cookie", "Tab cookie set", map[string]any{
		"secure": c.Secure,
	})
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
