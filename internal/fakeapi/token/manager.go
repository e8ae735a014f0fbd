package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

const BearerTokenType = "bearer"

// Pair is what the login and refresh endpoints return.
type Pair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject  string
	Username string
	ID       string
	Expiry   time.Time
}

// Manager issues HS256 access tokens and rotating opaque refresh tokens.
type Manager struct {
	signer             Signer
	refreshRepo        RefreshTokenRepo
	revokedCache       RevokedTokenCache
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	refreshTokenLength int
	nowFunc            func() time.Time

	// Issued access tokens, so every one can be revoked at once.
	issuedLock sync.Mutex
	issued     map[string]time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithRefreshTokenLength(length int) ManagerOption {
	return func(m *Manager) {
		m.refreshTokenLength = length
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func NewManager(signer Signer, repo RefreshTokenRepo, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       signer,
		refreshRepo:  repo,
		revokedCache: NewInMemoryRevokedTokenCache(),
		issued:       make(map[string]time.Time),
	}
	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.refreshTokenLength == 0 {
		m.refreshTokenLength = 32
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue creates a new pair for the user, replacing any refresh token the user already held.
func (m *Manager) Issue(userID, username string) (*Pair, error) {
	accessToken, err := m.CreateAccessToken(userID, username)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.Issue CreateAccessToken")
	}
	refreshToken, err := m.CreateRefreshToken(userID, username)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.Issue CreateRefreshToken")
	}
	return &Pair{
		AccessToken:  accessToken,
		TokenType:    BearerTokenType,
		RefreshToken: refreshToken,
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
	}, nil
}

func (m *Manager) CreateAccessToken(userID, username string) (string, error) {
	now := m.nowFunc()
	exp := now.Add(m.accessTokenExpiry)
	jti := uuid.New().String()

	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
		"jti":      jti, // Unique token ID for revocation
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", err
	}

	m.issuedLock.Lock()
	m.issued[jti] = exp
	m.issuedLock.Unlock()
	return signed, nil
}

func (m *Manager) CreateRefreshToken(userID, username string) (string, error) {
	if existing, err := m.refreshRepo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.refreshRepo.Delete(existing.Token); err != nil {
			return "", errors.Wrap(err, "Manager.CreateRefreshToken Delete")
		}
	}

	tokenBytes := make([]byte, m.refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "Manager.CreateRefreshToken rand.Read")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.refreshRepo.Upsert(&StoredRefreshToken{
		Token:    tokenStr,
		UserID:   userID,
		Username: username,
		Iat:      m.nowFunc(),
	}); err != nil {
		return "", errors.Wrap(err, "Manager.CreateRefreshToken Upsert")
	}
	return tokenStr, nil
}

// Rotate spends a refresh token and returns a new pair. A spent or expired token is rejected.
func (m *Manager) Rotate(refreshToken string) (*Pair, error) {
	rt, err := m.refreshRepo.Get(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if m.nowFunc().Sub(rt.Iat) > m.refreshTokenExpiry {
		_ = m.refreshRepo.Delete(refreshToken)
		return nil, ErrRefreshTokenExpired
	}
	if err := m.refreshRepo.Delete(refreshToken); err != nil {
		// Lost a race with a concurrent rotation of the same token.
		return nil, ErrInvalidRefreshToken
	}
	return m.Issue(rt.UserID, rt.Username)
}

// Verify checks signature, expiry and revocation of an access token.
func (m *Manager) Verify(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidAccessToken
	}

	parsed, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidAccessToken
	}
	sub, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidAccessToken
	}

	if jti != "" && m.revokedCache.IsRevoked(jti) {
		return nil, ErrInvalidAccessToken
	}
	return &Claims{Subject: sub, Username: username, ID: jti, Expiry: exp.Time}, nil
}

// RevokeAccessTokens revokes every access token issued so far. Refresh tokens stay valid, so
// the next request from a client has to refresh.
func (m *Manager) RevokeAccessTokens() {
	m.issuedLock.Lock()
	defer m.issuedLock.Unlock()

	for jti, exp := range m.issued {
		_ = m.revokedCache.Add(jti, exp)
	}
	m.issued = make(map[string]time.Time)
	m.revokedCache.Cleanup(m.nowFunc())
}

// InvalidateRefreshToken deletes the user's refresh token, if any.
func (m *Manager) InvalidateRefreshToken(userID string) {
	if rt, err := m.refreshRepo.GetByUserID(userID); err == nil && rt != nil {
		_ = m.refreshRepo.Delete(rt.Token)
	}
}
