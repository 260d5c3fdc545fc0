// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package web serves the gatehouse HTML routes.
//
// Handlers never read identity from ambient state: each guarded route
// restores the session principal and passes it as an argument.
package web

import (
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/access"
	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/rooms"
	"github.com/gatehouse/gatehouse/internal/sso"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

const genericErrorMessage = "Something went wrong"

// DefaultProviderTimeout bounds one provider code exchange.
const DefaultProviderTimeout = 10 * time.Second

// failureRoutes is where a rejected provider login lands.
var failureRoutes = map[auth.Provider]string{
	auth.ProviderSlack:   "/",
	auth.ProviderGoogle:  "/",
	auth.ProviderOutlook: "/login",
}

// Options holds the Server's collaborators.
type Options struct {
	Authenticator *auth.Authenticator
	Registrar     *auth.Registrar
	Sessions      *auth.SessionStore
	Gate          *access.Gate
	Rooms         *rooms.Service
	// Providers may be nil when no external provider is enabled.
	Providers *sso.Registry

	CookieName      string
	CookieSecure    bool
	ProviderTimeout time.Duration
	Logger          *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	authn           *auth.Authenticator
	registrar       *auth.Registrar
	sessions        *auth.SessionStore
	gate            *access.Gate
	rooms           *rooms.Service
	providers       *sso.Registry
	cookieName      string
	cookieSecure    bool
	providerTimeout time.Duration
	logger          *slog.Logger
	pages           map[string]*template.Template
}

// NewServer validates opts and parses the page templates.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Authenticator == nil:
		return nil, oops.Errorf("authenticator is required")
	case opts.Registrar == nil:
		return nil, oops.Errorf("registrar is required")
	case opts.Sessions == nil:
		return nil, oops.Errorf("session store is required")
	case opts.Gate == nil:
		return nil, oops.Errorf("access gate is required")
	case opts.Rooms == nil:
		return nil, oops.Errorf("rooms service is required")
	case opts.CookieName == "":
		return nil, oops.Errorf("cookie name is required")
	}
	if opts.Providers == nil {
		opts.Providers = sso.NewRegistry()
	}
	for _, name := range opts.Providers.Names() {
		if !opts.Authenticator.Has(string(name)) {
			return nil, oops.With("provider", string(name)).Errorf("provider has no authentication strategy")
		}
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	return &Server{
		authn:           opts.Authenticator,
		registrar:       opts.Registrar,
		sessions:        opts.Sessions,
		gate:            opts.Gate,
		rooms:           opts.Rooms,
		providers:       opts.Providers,
		cookieName:      opts.CookieName,
		cookieSecure:    opts.CookieSecure,
		providerTimeout: opts.ProviderTimeout,
		logger:          opts.Logger,
		pages:           pages,
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(accessLog(s.logger))

	r.HandleFunc("/", s.withPrincipal(s.handleIndex)).Methods(http.MethodGet)

	r.HandleFunc("/signup", s.withPrincipal(s.handleSignupForm)).Methods(http.MethodGet)
	r.HandleFunc("/signup", s.withPrincipal(s.handleSignup)).Methods(http.MethodPost)
	r.HandleFunc("/login", s.withPrincipal(s.handleLoginForm)).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet)

	r.HandleFunc("/private", s.requireAuth(s.handlePrivate)).Methods(http.MethodGet)

	r.HandleFunc("/rooms", s.requireAuth(s.handleListRooms)).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.sameOrigin(s.requireAuth(s.handleCreateRoom))).Methods(http.MethodPost)
	r.HandleFunc("/rooms/allrooms", s.requireRole(auth.RoleAdmin, s.handleAllRooms)).Methods(http.MethodGet)
	r.HandleFunc("/rooms/delete/{id}", s.sameOrigin(s.requireRoomOwner(s.handleDeleteRoom))).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}/delete", s.sameOrigin(s.requireRoomOwner(s.handleDeleteRoom))).Methods(http.MethodPost)

	r.HandleFunc("/auth/{provider}", s.handleProviderStart).Methods(http.MethodGet)
	r.HandleFunc("/auth/{provider}/callback", s.handleProviderCallback).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	return r
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, pageError, pageData{Status: http.StatusNotFound, Message: "Not found"})
}

// serverError logs err and renders the generic 500 page.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logError(r, msg, err)
	s.render(w, r, http.StatusInternalServerError, pageError, pageData{
		Status:  http.StatusInternalServerError,
		Message: genericErrorMessage,
	})
}

func (s *Server) logError(r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), s.logger.With("method", r.Method, "path", r.URL.Path), msg, err)
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func sessionMeta(r *http.Request) auth.SessionMeta {
	return auth.SessionMeta{UserAgent: r.UserAgent(), IPAddress: clientIP(r)}
}
