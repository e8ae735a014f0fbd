package fakeapi

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-reader-client/internal/fakeapi/users"
	"github.com/jrsteele09/go-reader-client/oauthmodel"
	"github.com/rs/zerolog/log"
)

// LoginHandler implements the password grant on a form-encoded body.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.loginCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Malformed form body")
			return
		}
		if grant := r.PostFormValue("grant_type"); grant != "" && grant != string(oauthmodel.PasswordGrant) {
			writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Only the password grant is supported")
			return
		}

		user, err := users.Authenticate(s.users, r.PostFormValue("username"), r.PostFormValue("password"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}

		pair, err := s.tokens.Issue(user.ID, user.Username)
		if err != nil {
			log.Err(err).Msg("Failed to issue tokens")
			writeDetail(w, http.StatusInternalServerError, "Could not issue tokens")
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// RefreshHandler rotates a refresh token. The presented token is spent either way.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		var request oauthmodel.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.RefreshToken == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "refresh_token is required")
			return
		}

		pair, err := s.tokens.Rotate(request.RefreshToken)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request oauthmodel.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "Malformed registration body")
			return
		}
		if err := request.Validate(); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		hash, err := users.HashPassword(request.Password)
		if err != nil {
			log.Err(err).Msg("Failed to hash password")
			writeDetail(w, http.StatusInternalServerError, "Could not register user")
			return
		}
		role := request.Role
		if role == "" {
			role = oauthmodel.RoleUser
		}
		active := request.IsActive == nil || *request.IsActive
		user := &users.User{
			Username:     request.Username,
			Email:        request.Email,
			PasswordHash: hash,
			FullName:     request.FullName,
			Role:         string(role),
			IsActive:     active,
			DateJoined:   s.nowFunc(),
		}

		switch err := s.users.Create(user); err {
		case nil:
		case users.ErrUsernameTaken:
			writeDetail(w, http.StatusConflict, "Username already registered")
			return
		case users.ErrEmailTaken:
			writeDetail(w, http.StatusConflict, "Email already registered")
			return
		default:
			log.Err(err).Msg("Failed to create user")
			writeDetail(w, http.StatusInternalServerError, "Could not register user")
			return
		}

		writeJSON(w, http.StatusCreated, oauthmodel.RegisteredUser{
			ID:          user.ID,
			Username:    user.Username,
			Email:       user.Email,
			FullName:    user.FullName,
			Role:        role,
			IsActive:    user.IsActive,
			Preferences: request.Preferences,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}
