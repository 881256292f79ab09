package logview

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// DefaultAddr is the listen address of the viewer.
const DefaultAddr = "127.0.0.1:8080"

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Job Logs</title>
<style>
body { font-family: sans-serif; background: #f9f9f9; color: #333; padding: 2rem; max-width: 800px; margin: auto; }
h1, h2 { text-align: center; }
pre { font-family: monospace; background: #272822; color: #f8f8f2; padding: 1rem; border-radius: 8px; overflow-x: auto; }
ul { list-style: none; padding: 0; }
li { margin: 0.5rem 0; }
a { text-decoration: none; color: #007acc; }
</style>
</head>
<body>
<h1>Job Logs</h1>
{{- if .Home}}
<h2>Available Endpoints</h2>
<ul>
<li><a href="/latest">/latest</a> - Show latest log content</li>
<li><a href="/logs">/logs</a> - List all log files</li>
</ul>
{{- else if .Message}}
<p>{{.Message}}</p>
{{- else if .Logs}}
<h2>All Logs</h2>
<ul>
{{- range .Logs}}
<li><a href="/log/{{.Name}}">{{.Name}}</a></li>
{{- end}}
</ul>
<p><a href="/latest">View latest log</a></p>
{{- else}}
<h2>{{.Title}}</h2>
<pre>{{.Content}}</pre>
<p><a href="/logs">Back to all logs</a></p>
{{- end}}
</body>
</html>
`))

type pageData struct {
	Home    bool
	Message string
	Logs    []LogFile
	Title   string
	Content string
}

// NewHandler returns the viewer's routes:
//
//	GET /             endpoint index
//	GET /logs         all logs, newest first
//	GET /latest       content of the newest log
//	GET /log/{name}   content of one log
func NewHandler(catalog *Catalog) http.Handler {
	h := &handler{catalog: catalog}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", h.home)
	r.Get("/logs", h.list)
	r.Get("/latest", h.latest)
	r.Get("/log/{name}", h.show)
	return r
}

type handler struct {
	catalog *Catalog
}

func (h *handler) home(w http.ResponseWriter, _ *http.Request) {
	render(w, http.StatusOK, pageData{Home: true})
}

func (h *handler) list(w http.ResponseWriter, _ *http.Request) {
	logs, err := h.catalog.List()
	if err != nil {
		logger.Error("Listing job logs: %v", err)
		render(w, http.StatusInternalServerError, pageData{Message: "Could not list log files."})
		return
	}
	if len(logs) == 0 {
		render(w, http.StatusOK, pageData{Message: "No log files found."})
		return
	}
	render(w, http.StatusOK, pageData{Logs: logs})
}

func (h *handler) latest(w http.ResponseWriter, _ *http.Request) {
	latest, err := h.catalog.Latest()
	if errors.Is(err, domain.ErrNotFound) {
		render(w, http.StatusOK, pageData{Message: "No log files found."})
		return
	}
	if err != nil {
		logger.Error("Listing job logs: %v", err)
		render(w, http.StatusInternalServerError, pageData{Message: "Could not list log files."})
		return
	}
	h.renderLog(w, latest.Name, "Latest log: "+latest.Name)
}

func (h *handler) show(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.renderLog(w, name, "Log: "+name)
}

func (h *handler) renderLog(w http.ResponseWriter, name, title string) {
	data, err := h.catalog.Read(name)
	if errors.Is(err, domain.ErrNotFound) {
		render(w, http.StatusNotFound, pageData{Message: "Log file " + name + " not found."})
		return
	}
	if err != nil {
		logger.Error("Reading job log %s: %v", name, err)
		render(w, http.StatusInternalServerError, pageData{Message: "Could not read log file."})
		return
	}
	render(w, http.StatusOK, pageData{Title: title, Content: string(data)})
}

func render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		logger.Warn("Rendering log page: %v", err)
	}
}

// Serve runs the viewer on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, catalog *Catalog) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(catalog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("Log viewer listening on http://%s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
