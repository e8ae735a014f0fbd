package auth

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
	"github.com/jrsteele09/go-reader-client/oauthmodel"
	"github.com/jrsteele09/go-reader-client/refresh"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// expirySkew treats a token that expires this soon as already expired.
const expirySkew = 30 * time.Second

// Service is the authentication context: it signs users in and out and reports whether the
// stored session is usable. Token refresh during normal requests belongs to the transport; the
// service shares its Coordinator so a startup check and a failing request never refresh twice.
type Service struct {
	api         *API
	store       session.Store
	coordinator *refresh.Coordinator
	logout      *session.LogoutSignal
	nowTime     func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService creates the authentication service. The logout signal is taken from the coordinator.
func NewService(api *API, store session.Store, coordinator *refresh.Coordinator, options ...ServiceOption) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] api is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] store is required")
	}
	if coordinator == nil {
		return nil, errors.New("[NewService] coordinator is required")
	}

	s := &Service{
		api:         api,
		store:       store,
		coordinator: coordinator,
		logout:      coordinator.Logout(),
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login exchanges credentials for a token pair and stores it.
func (s *Service) Login(ctx context.Context, credentials oauthmodel.Credentials) error {
	response, err := s.api.Login(ctx, credentials)
	if err != nil {
		return err
	}

	pair := response.Session()
	if !pair.IsAuthenticated() {
		return apperrors.Wrapf(apperrors.ErrInvalidToken, "login response is missing a token")
	}
	if err := s.store.Set(ctx, pair); err != nil {
		return errors.Wrap(err, "[Login] failed to store session")
	}

	log.Info().Str("username", credentials.Username).Msg("Logged in")
	return nil
}

// Register creates an account without signing in.
func (s *Service) Register(ctx context.Context, request oauthmodel.RegisterRequest) (*oauthmodel.RegisteredUser, error) {
	user, err := s.api.Register(ctx, request)
	if err != nil {
		return nil, err
	}
	log.Info().Str("username", user.Username).Msg("Registered")
	return user, nil
}

// SignUp registers an account and then logs in with the same credentials.
func (s *Service) SignUp(ctx context.Context, request oauthmodel.RegisterRequest) (*oauthmodel.RegisteredUser, error) {
	user, err := s.Register(ctx, request)
	if err != nil {
		return nil, err
	}
	if err := s.Login(ctx, request.Credentials()); err != nil {
		return user, errors.Wrap(err, "[SignUp] registered but login failed")
	}
	return user, nil
}

// Logout clears the stored session and emits the logout signal. A refresh still in flight
// cannot restore the session afterwards.
func (s *Service) Logout(ctx context.Context) error {
	return s.coordinator.EndSession(ctx, session.ReasonUserLogout)
}

// IsAuthenticated reports whether both tokens are stored. It does not check expiry.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	return s.store.Get(ctx).IsAuthenticated()
}

// OnLogout subscribes fn to the logout signal.
func (s *Service) OnLogout(fn func(session.LogoutReason)) (unsubscribe func()) {
	return s.logout.Subscribe(fn)
}

// CheckSession is run at startup. It reports whether a usable session is stored, refreshing an
// expired access token first. A session holding only one token is cleared. An error is only
// returned when the check itself could not complete.
func (s *Service) CheckSession(ctx context.Context) (bool, error) {
	current := s.store.Get(ctx)
	if current.IsEmpty() {
		return false, nil
	}
	if err := current.Validate(); err != nil {
		log.Warn().Msg("Stored session is incomplete, clearing it")
		_ = s.coordinator.EndSession(ctx, session.ReasonInvalidSession)
		return false, nil
	}

	expiry, ok := AccessTokenExpiry(current.AccessToken)
	if !ok || s.nowTime().Add(expirySkew).Before(expiry) {
		return true, nil
	}

	log.Debug().Time("expiry", expiry).Msg("Access token expired, refreshing")
	if _, err := s.coordinator.Refresh(ctx, current.AccessToken); err != nil {
		if apperrors.Is(err, apperrors.ErrRefreshFailed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
