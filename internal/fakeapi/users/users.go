package users

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already registered")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("incorrect username or password")
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialize
	FullName     string    `json:"full_name,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	DateJoined   time.Time `json:"date_joined"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

type Repo interface {
	Create(user *User) error
	GetByUsername(username string) (*User, error)
	GetByID(id string) (*User, error)
}

// InMemoryRepo indexes users by id, username and email. Usernames and emails are unique,
// compared case-insensitively.
type InMemoryRepo struct {
	users     map[string]*User
	usernames map[string]string // lower-cased username to user id
	emails    map[string]string // lower-cased email to user id
	lock      sync.RWMutex
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		users:     make(map[string]*User),
		usernames: make(map[string]string),
		emails:    make(map[string]string),
	}
}

func (r *InMemoryRepo) Create(user *User) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	username := strings.ToLower(user.Username)
	email := strings.ToLower(user.Email)
	if _, ok := r.usernames[username]; ok {
		return ErrUsernameTaken
	}
	if _, ok := r.emails[email]; ok && email != "" {
		return ErrEmailTaken
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.users[user.ID] = user
	r.usernames[username] = user.ID
	if email != "" {
		r.emails[email] = user.ID
	}
	return nil
}

func (r *InMemoryRepo) GetByUsername(username string) (*User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	id, ok := r.usernames[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.users[id], nil
}

func (r *InMemoryRepo) GetByID(id string) (*User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Authenticate returns the user when the password matches.
func Authenticate(repo Repo, username, password string) (*User, error) {
	user, err := repo.GetByUsername(username)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if !user.IsActive || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrBadCredentials
	}
	return user, nil
}
