// Package server wires the blog's HTTP routes, middleware and templates.
package server

import (
	"crypto/rand"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"blog/internal/mailer"
	"blog/internal/metrics"
	"blog/internal/models"
	"blog/web"
)

// Options configures a Server. Store and Mailer are required.
type Options struct {
	Store  *models.Store
	Mailer mailer.Sender
	Log    logrus.FieldLogger

	// Templates and Static default to the embedded web assets.
	Templates fs.FS
	Static    fs.FS

	Title         string
	PageSize      int
	CookieName    string
	SessionTTL    time.Duration
	SecureCookies bool
	FlashSecret   string
	Inbox         string

	RateLimit float64
	RateBurst int
}

type Server struct {
	store   *models.Store
	mail    mailer.Sender
	log     logrus.FieldLogger
	tmpl    map[string]*template.Template
	static  fs.FS
	flashes *flashCodec
	limiter *rateLimiter
	handler http.Handler

	title      string
	pageSize   int
	cookieName string
	sessionTTL time.Duration
	secure     bool
	inbox      string
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Mailer == nil {
		return nil, errors.New("server: mailer is required")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Templates == nil {
		opts.Templates = web.Templates()
	}
	if opts.Static == nil {
		opts.Static = web.Static()
	}
	if opts.PageSize < 1 {
		opts.PageSize = 5
	}
	if opts.CookieName == "" {
		opts.CookieName = "session_id"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.RateBurst < 1 {
		opts.RateBurst = 10
	}

	secret := []byte(opts.FlashSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		opts.Log.Warn("no flash secret configured, using a random one; flash messages will not survive a restart")
	}

	templates, err := loadTemplates(opts.Templates)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:      opts.Store,
		mail:       opts.Mailer,
		log:        opts.Log,
		tmpl:       templates,
		static:     opts.Static,
		flashes:    newFlashCodec(secret, opts.SecureCookies),
		limiter:    newRateLimiter(opts.RateLimit, opts.RateBurst),
		title:      opts.Title,
		pageSize:   opts.PageSize,
		cookieName: opts.CookieName,
		sessionTTL: opts.SessionTTL,
		secure:     opts.SecureCookies,
		inbox:      opts.Inbox,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	chain := []mux.MiddlewareFunc{s.recoverPanics, s.logRequests, metrics.InstrumentHandler, s.withFlashes, s.withUser}
	r := mux.NewRouter()
	r.Use(chain...)
	// mux only runs Use middleware on matched routes.
	r.NotFoundHandler = wrap(http.HandlerFunc(s.handleNotFound), chain)
	r.MethodNotAllowedHandler = wrap(http.HandlerFunc(s.handleMethodNotAllowed), chain)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}", s.handleShowPost).Methods(http.MethodGet)
	r.HandleFunc("/post/{id:[0-9]+}", s.handleComment).Methods(http.MethodPost)
	r.HandleFunc("/new-post", s.requireAuth(s.handleNewPost)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/edit-post/{id:[0-9]+}", s.requireAdmin(s.handleEditPost)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/delete/{id:[0-9]+}", s.requireAdmin(s.handleDeletePost)).Methods(http.MethodGet)
	r.HandleFunc("/register-user", s.limit(s.handleRegister)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/login", s.limit(s.handleLogin)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)
	r.HandleFunc("/contact", s.limit(s.handleContact)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/about", s.handleAbout).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// PruneLimiters drops per-client rate limiters idle for longer than maxIdle.
func (s *Server) PruneLimiters(maxIdle time.Duration) int {
	return s.limiter.prune(maxIdle)
}

func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// helpers
func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func postID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func postPath(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10)
}

func editPath(id int64) string {
	return "/edit-post/" + strconv.FormatInt(id, 10)
}
