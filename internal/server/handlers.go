package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shift/internal/model"
	"shift/internal/render"
	"shift/internal/workflow"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxCleanBody = 5 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write([]byte(s.css))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "index.html", map[string]any{})
}

// handleReadForm turns the home page form into a shareable GET URL.
func (s *Server) handleReadForm(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.FormValue("url"))
	if target == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/read?url="+url.QueryEscape(target), http.StatusSeeOther)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.read(w, r, target)
}

func (s *Server) handleReadPath(w http.ResponseWriter, r *http.Request) {
	target := reconstructURL(mux.Vars(r)["url"], r.URL.RawQuery)
	if target == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.read(w, r, target)
}

// read runs one request through a fresh workflow and renders the outcome.
func (s *Server) read(w http.ResponseWriter, r *http.Request, target string) {
	snap, err := workflow.New(s.source, s.cleaner, s.logger).Run(r.Context(), target)
	if err != nil {
		// Client went away; nobody is left to render for
		s.logger.Debug("Read abandoned", zap.String("url", target), zap.Error(err))
		return
	}

	if snap.State == model.StateFailed {
		s.renderPage(w, http.StatusBadGateway, "error.html", map[string]any{
			"Message":  snap.Error,
			"RetryURL": "/read?url=" + url.QueryEscape(target),
		})
		return
	}

	s.renderPage(w, http.StatusOK, "article.html", articlePage(target, snap))
}

func articlePage(target string, snap workflow.Snapshot) map[string]any {
	meta := snap.Article.Metadata
	return map[string]any{
		"Title":       model.Value(meta.Title),
		"Author":      model.Value(meta.Author),
		"Date":        formatDate(model.Value(meta.PublishedTime)),
		"Image":       model.Value(meta.OGImage),
		"Language":    model.Value(meta.Language),
		"Content":     template.HTML(render.RenderHTML(snap.Article.Markdown)),
		"OriginalURL": target,
		"Fallback":    snap.Fallback,
		"Reason":      string(snap.Reason),
	}
}

// formatDate shows RFC 3339 timestamps as "Jan 02, 2006" and leaves
// anything else as published.
func formatDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Jan 02, 2006")
		}
	}
	return raw
}

func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf strings.Builder
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(buf.String()))
}

func (s *Server) handleAPIRead(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing url parameter"})
		return
	}

	snap, err := workflow.New(s.source, s.cleaner, s.logger).Run(r.Context(), target)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}

	status := http.StatusOK
	if snap.State == model.StateFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, snap)
}

type cleanRequest struct {
	Markdown string          `json:"markdown"`
	Metadata *model.Metadata `json:"metadata,omitempty"`
}

func (s *Server) handleAPIClean(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var req cleanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCleanBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Markdown) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "markdown cannot be empty"})
		return
	}

	// Failures are part of the response body, not the status
	writeJSON(w, http.StatusOK, s.cleaner.Clean(r.Context(), req.Markdown, req.Metadata))
}

type queueRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleAPIQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if s.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "queue is not configured"})
		return
	}

	var body queueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "a JSON body with a url is required"})
		return
	}

	req := model.NewReadRequest(strings.TrimSpace(body.URL))
	if err := s.queue.Push(r.Context(), req); err != nil {
		s.logger.Error("Failed to queue request", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to queue request"})
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}
