package main

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/always-cache/relocate"
	querystring "github.com/always-cache/relocate/pkg/query-string"
	"github.com/always-cache/relocate/session"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<title>{{.Path}}</title>
<h1>{{.Path}}</h1>
<p><a href="/back">back</a> | <a href="/home">home</a></p>
<ol reversed>{{range .History}}<li>{{.}}</li>{{end}}</ol>
`))

// newServer wires session handling, history tracking and the demo routes.
func newServer(config Config, provider session.Provider, reg *prometheus.Registry, logger zerolog.Logger) http.Handler {
	sessions := session.NewManager(session.Config{
		Provider:   provider,
		CookieName: config.Session.Cookie,
		MaxAge:     config.Session.MaxAge,
		Secure:     config.Session.Secure,
		Logger:     &logger,
	})
	rl := relocate.New(relocate.Config{
		BaseURL:    config.Base,
		Capacity:   config.Capacity,
		Rules:      config.Rules,
		Logger:     &logger,
		Registerer: reg,
	})

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Sending response to client")
	}))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Use(rl.Track)

		// GET /back?x=1 sends the client back with the given query parameters
		r.Get("/back", func(w http.ResponseWriter, r *http.Request) {
			rl.Back(w, r, querystring.FromValues(r.URL.Query()))
		})
		r.Get("/home", func(w http.ResponseWriter, r *http.Request) {
			rl.Home(w, r, nil, r.URL.Query().Get("anchor"))
		})
		r.Get("/to/*", func(w http.ResponseWriter, r *http.Request) {
			rl.To(w, r, "/"+chi.URLParam(r, "*"), querystring.FromValues(r.URL.Query()))
		})
		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			if err := sessions.Destroy(r); err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("Could not destroy session")
			}
			rl.Home(w, r, nil, "")
		})
		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			entries, err := historyEntries(rl, r)
			if err != nil {
				http.Error(w, "Could not read history", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(entries)
		})
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			entries, err := historyEntries(rl, r)
			if err != nil {
				http.Error(w, "Could not read history", http.StatusInternalServerError)
				return
			}
			// newest first
			for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
				entries[i], entries[j] = entries[j], entries[i]
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			pageTemplate.Execute(w, struct {
				Path    string
				History []string
			}{r.URL.Path, entries})
		})
	})

	return r
}

func historyEntries(rl *relocate.Relocator, r *http.Request) ([]string, error) {
	h, err := rl.History(r)
	if err != nil {
		return nil, err
	}
	return h.Entries()
}
