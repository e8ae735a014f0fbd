// Package fakeapi is an in-process implementation of the reading backend's REST contract:
// password login, refresh token rotation, registration and the bearer-protected content
// routes. It backs the tests and cmd/fakeapi.
package fakeapi

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-reader-client/apiclient"
	"github.com/jrsteele09/go-reader-client/content"
	"github.com/jrsteele09/go-reader-client/internal/config"
	"github.com/jrsteele09/go-reader-client/internal/fakeapi/token"
	"github.com/jrsteele09/go-reader-client/internal/fakeapi/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string
	mux     *http.ServeMux
	routes  []string
	tokens  *token.Manager
	users   users.Repo
	library *library
	nowFunc func() time.Time

	tokenOptions []token.ManagerOption

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
}

type Option func(*Server)

// WithEnv sets the environment; "DEV" logs every route and request.
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

// WithNowFunc sets the clock used for tokens and timestamps (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// WithTokenOptions passes options through to the token manager.
func WithTokenOptions(options ...token.ManagerOption) Option {
	return func(s *Server) {
		s.tokenOptions = append(s.tokenOptions, options...)
	}
}

func New(cfg config.ServerConfig, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[fakeapi.New] config is required")
	}
	if cfg.GetJWTSecret() == "" {
		return nil, errors.New("[fakeapi.New] JWT secret is required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		users:   users.NewInMemoryRepo(),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	tokenOptions := append([]token.ManagerOption{
		token.WithTokenExpiry(cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry()),
		token.WithRefreshTokenLength(cfg.GetRefreshTokenLength()),
		token.WithNowFunc(s.nowFunc),
	}, s.tokenOptions...)
	s.tokens = token.NewManager(token.NewHMACSigner(cfg.GetJWTSecret()), token.NewInMemoryRefreshTokenRepo(), tokenOptions...)
	s.library = newLibrary(s.nowFunc)

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	public := s.APIMiddleware()
	protected := s.APIMiddleware(s.RequireAuth())

	s.RegisterRouteFunc("POST "+apiclient.RouteLogin, ChainMiddleware(s.LoginHandler(), public...))
	s.RegisterRouteFunc("POST "+apiclient.RouteRefresh, ChainMiddleware(s.RefreshHandler(), public...))
	s.RegisterRouteFunc("POST "+apiclient.RouteRegister, ChainMiddleware(s.RegisterHandler(), public...))

	s.RegisterRouteFunc("GET "+apiclient.RouteNovels, ChainMiddleware(s.ListNovelsHandler(), protected...))
	s.RegisterRouteFunc("POST "+apiclient.RouteNovels, ChainMiddleware(s.CreateNovelHandler(), protected...))
	s.RegisterRouteFunc("GET "+apiclient.RouteNovel, ChainMiddleware(s.GetNovelHandler(), protected...))
	s.RegisterRouteFunc("PATCH "+apiclient.RouteNovel, ChainMiddleware(s.UpdateNovelHandler(), protected...))
	s.RegisterRouteFunc("DELETE "+apiclient.RouteNovel, ChainMiddleware(s.DeleteNovelHandler(), protected...))
	s.RegisterRouteFunc("GET "+apiclient.RouteChapters, ChainMiddleware(s.ListChaptersHandler(), protected...))
	s.RegisterRouteFunc("POST "+apiclient.RouteFetchChapters, ChainMiddleware(s.FetchChaptersHandler(), protected...))
	s.RegisterRouteFunc("GET "+apiclient.RouteChapter, ChainMiddleware(s.GetChapterHandler(), protected...))
	s.RegisterRouteFunc("GET "+apiclient.RouteChapterProgress, ChainMiddleware(s.GetProgressHandler(), protected...))
	s.RegisterRouteFunc("POST "+apiclient.RouteChapterProgress, ChainMiddleware(s.UpdateProgressHandler(), protected...))
	s.RegisterRouteFunc("GET "+apiclient.RouteSources, ChainMiddleware(s.ListSourcesHandler(), protected...))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("Route registered")
	}
}

// AddUser registers an active user directly, bypassing the registration endpoint.
func (s *Server) AddUser(username, email, password string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "AddUser HashPassword")
	}
	return s.users.Create(&users.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         "user",
		IsActive:     true,
		DateJoined:   s.nowFunc(),
	})
}

// AddNovel seeds the library with a novel and count generated chapters.
func (s *Server) AddNovel(n content.NewNovel, chapters int) (content.Novel, error) {
	novel := s.library.create(n)
	if chapters > 0 {
		if _, err := s.library.addChapters(novel.ID, chapters); err != nil {
			return content.Novel{}, err
		}
	}
	return s.library.get(novel.ID)
}

// RevokeAccessTokens makes every issued access token fail with 401 while refresh tokens stay
// valid.
func (s *Server) RevokeAccessTokens() {
	s.tokens.RevokeAccessTokens()
}

// RevokeRefreshToken invalidates the refresh token held by username.
func (s *Server) RevokeRefreshToken(username string) error {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		return err
	}
	s.tokens.InvalidateRefreshToken(user.ID)
	return nil
}

// RefreshCalls is the number of requests served by the refresh endpoint.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// LoginCalls is the number of requests served by the login endpoint.
func (s *Server) LoginCalls() int64 {
	return s.loginCalls.Load()
}
