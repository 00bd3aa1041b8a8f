package http

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cotpulse/internal/config"
)

// ServeDashboard serves index.html from webDir, or a built-in status page
// when no dashboard is installed.
func ServeDashboard(webDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		indexPath := filepath.Join(webDir, "index.html")
		if _, err := os.Stat(indexPath); err != nil {
			serveStatusPage(w)
			return
		}
		serveHTML(w, indexPath)
	}
}

// StaticFiles serves the dashboard assets below webDir.
func StaticFiles(webDir string) http.Handler {
	return http.FileServer(http.Dir(webDir))
}

func serveStatusPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%[1]s</title></head>
<body>
    <h1>%[1]s %[2]s</h1>
    <p>Rendered at %[3]s. No dashboard is installed in the web directory.</p>
    <ul>
        <li><a href="/api/cot/positions">Positions</a></li>
        <li><a href="/api/cot/history">History</a></li>
        <li><a href="/api/cot/overview">Overview</a></li>
        <li><a href="/api/health/ready">Readiness</a></li>
        <li><a href="/api/version">Version</a></li>
    </ul>
</body>
</html>
`, config.AppName, config.AppVersion, time.Now().Format("2006-01-02 15:04:05"))
}

// serveHTML serves an HTML file with proper headers
func serveHTML(w http.ResponseWriter, filePath string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	tmpl, err := template.ParseFiles(filePath)
	if err != nil {
		http.Error(w, "Error loading page", http.StatusInternalServerError)
		return
	}
	if err := tmpl.Execute(w, nil); err != nil {
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}
