package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"shift/internal/cleanup"
	"shift/internal/model"
	"shift/internal/queue"
	"shift/internal/render"
	"shift/internal/workflow"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Cleaner is what the server needs from the cleanup package.
type Cleaner interface {
	workflow.Normalizer
	Clean(ctx context.Context, rawMarkdown string, metadata *model.Metadata) cleanup.Response
}

// Options configures the HTTP surface.
type Options struct {
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit      int
	RateBurst      int
	AllowedOrigins []string
}

type Server struct {
	source  workflow.Source
	cleaner Cleaner
	queue   queue.Queue
	logger  *zap.Logger
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	pages   *template.Template
	css     string
}

// NewServer wires routes and middleware. q may be nil, which disables
// POST /api/queue.
func NewServer(src workflow.Source, cleaner Cleaner, q queue.Queue, opts Options, logger *zap.Logger) *Server {
	css, err := render.HighlightCSS()
	if err != nil {
		logger.Warn("Highlight stylesheet unavailable", zap.Error(err))
	}

	s := &Server{
		source:  src,
		cleaner: cleaner,
		queue:   q,
		logger:  logger,
		router:  mux.NewRouter(),
		pages:   template.Must(template.ParseFS(templateFS, "templates/*.html")),
		css:     css,
	}
	// Article URLs travel inside the path; cleaning would squash their "//"
	s.router.SkipClean(true)
	// Route vars stay percent-encoded; reconstructURL decodes them exactly once
	s.router.UseEncodedPath()
	s.routes(opts)

	var h http.Handler = s.router
	if opts.RateLimit > 0 {
		h = rateLimit(newIPLimiter(opts.RateLimit, opts.RateBurst))(h)
	}
	s.handler = requestLogger(logger)(h)
	return s
}

func (s *Server) routes(opts Options) {
	s.router.HandleFunc("/static/highlight.css", s.handleCSS).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// App Routes
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/read", s.handleReadForm).Methods("POST")
	s.router.HandleFunc("/read", s.handleRead).Methods("GET")
	s.router.HandleFunc("/read/{url:.*}", s.handleReadPath).Methods("GET")

	// JSON API
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(c.Handler)
	api.HandleFunc("/read", s.handleAPIRead).Methods("GET", "OPTIONS")
	api.HandleFunc("/clean", s.handleAPIClean).Methods("POST", "OPTIONS")
	api.HandleFunc("/queue", s.handleAPIQueue).Methods("POST", "OPTIONS")
}

// Handler returns the router wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start launches the HTTP server
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:        ":" + port,
		Handler:     s.handler,
		ReadTimeout: 15 * time.Second,
		// Cleanup calls can take minutes on long articles
		WriteTimeout: 5 * time.Minute,
	}

	s.logger.Info("Web server listening", zap.String("addr", port))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
