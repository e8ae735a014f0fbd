package token

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// StoredRefreshToken is the server-side record of an opaque refresh token.
type StoredRefreshToken struct {
	Token    string
	UserID   string
	Username string
	Iat      time.Time
}

type RefreshTokenRepo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID string) (*StoredRefreshToken, error)
}

// InMemoryRefreshTokenRepo keeps one refresh token per user.
type InMemoryRefreshTokenRepo struct {
	tokens  map[string]*StoredRefreshToken
	userIDs map[string]string // user ID to token
	lock    sync.RWMutex
}

var _ RefreshTokenRepo = (*InMemoryRefreshTokenRepo)(nil)

func NewInMemoryRefreshTokenRepo() *InMemoryRefreshTokenRepo {
	return &InMemoryRefreshTokenRepo{
		tokens:  make(map[string]*StoredRefreshToken),
		userIDs: make(map[string]string),
	}
}

func (r *InMemoryRefreshTokenRepo) Upsert(refreshToken *StoredRefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.tokens[refreshToken.Token] = refreshToken
	r.userIDs[refreshToken.UserID] = refreshToken.Token
	return nil
}

func (r *InMemoryRefreshTokenRepo) Delete(token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	rt, ok := r.tokens[token]
	if !ok {
		return ErrRefreshTokenNotFound
	}
	if r.userIDs[rt.UserID] == token {
		delete(r.userIDs, rt.UserID)
	}
	delete(r.tokens, token)
	return nil
}

func (r *InMemoryRefreshTokenRepo) Get(token string) (*StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rt, ok := r.tokens[token]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	return rt, nil
}

func (r *InMemoryRefreshTokenRepo) GetByUserID(userID string) (*StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	token, ok := r.userIDs[userID]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	return r.tokens[token], nil
}
