package oauthmodel

import (
	"net/mail"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Credentials are posted to the login endpoint.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrMissingUsername
	}
	if c.Password == "" {
		return ErrMissingPassword
	}
	return nil
}

// Preferences are the reading defaults stored with a new account.
type Preferences struct {
	DefaultLanguage   string  `json:"default_language"`
	ReadingFontSize   int     `json:"reading_font_size"`
	ReadingLineHeight float64 `json:"reading_line_height"`
}

// RegisterRequest is the JSON body of the registration endpoint.
type RegisterRequest struct {
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	Password    string       `json:"password"`
	FullName    string       `json:"full_name,omitempty"`
	Role        Role         `json:"role,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return ErrMissingUsername
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrInvalidEmail
	}
	if r.Password == "" {
		return ErrMissingPassword
	}
	if r.Role != "" && r.Role != RoleUser && r.Role != RoleAdmin {
		return ErrInvalidRole
	}
	return nil
}

// Credentials returns the login credentials for a freshly registered account.
func (r RegisterRequest) Credentials() Credentials {
	return Credentials{Username: r.Username, Password: r.Password}
}

// RegisteredUser is the confirmation returned by the registration endpoint.
type RegisteredUser struct {
	ID          string       `json:"id,omitempty"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	FullName    string       `json:"full_name,omitempty"`
	Role        Role         `json:"role,omitempty"`
	IsActive    bool         `json:"is_active"`
	Preferences *Preferences `json:"preferences,omitempty"`
}
