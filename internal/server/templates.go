package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/dgellow/authfront/internal/forms"
	"github.com/dgellow/authfront/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// Every page is the layout plus one "content" definition
var (
	authPageTemplate    = mustPage("auth.html")
	successPageTemplate = mustPage("success.html")
	forgotPageTemplate  = mustPage("forgot.html")
	changePageTemplate  = mustPage("change.html")
)

func mustPage(name string) *template.Template {
	return template.Must(template.New("layout.html").ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

// AlertView is the alert as rendered into a page
type AlertView struct {
	Message     string
	Visible     bool
	RemainingMs int64
}

// PageData is shared by every page
type PageData struct {
	AppName   string
	Title     string
	Path      string
	CSRFToken string
	Alert     AlertView
}

// AuthPageData represents the sign-in / sign-up page
type AuthPageData struct {
	PageData
	Mode          forms.Mode
	SignIn        bool
	Email         string
	Remember      bool
	Errors        forms.Errors
	GoogleEnabled bool
}

// SuccessPageData represents the post-login page
type SuccessPageData struct {
	PageData
	Email string
}

// ForgotPageData represents the password reset request page
type ForgotPageData struct {
	PageData
	Email  string
	Errors forms.Errors
}

// ChangePageData represents the change password page. Password inputs are
// never echoed back.
type ChangePageData struct {
	PageData
	Errors forms.Errors
}

// renderPage executes tmpl into a buffer first so a template failure never
// produces half a page
func renderPage(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.LogErrorWithFields("render", "Failed to render page", map[string]any{
			"template": tmpl.Name(),
			"error":    err.Error(),
		})
		writeErrorPage(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// writeErrorPage answers with a minimal HTML page carrying no details
func writeErrorPage(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	text := template.HTMLEscapeString(http.StatusText(status))
	_, _ = w.Write([]byte("<!DOCTYPE html><html><head><title>" + text + "</title></head><body><h1>" + text + "</h1><p><a href=\"/\">Back to sign in</a></p></body></html>"))
}
