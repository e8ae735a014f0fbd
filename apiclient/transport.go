package apiclient

import (
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
	"github.com/jrsteele09/go-reader-client/internal/metrics"
	"github.com/jrsteele09/go-reader-client/refresh"
	"github.com/jrsteele09/go-reader-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// RequestIDHeader correlates the first attempt and the retry of one logical request.
const RequestIDHeader = "X-Request-ID"

// pendingRequest is a request in flight through the Transport.
type pendingRequest struct {
	req       *http.Request
	requestID string
	retried   bool
}

// replayable reports whether the body can be sent a second time.
func (p *pendingRequest) replayable() bool {
	return p.req.Body == nil || p.req.Body == http.NoBody || p.req.GetBody != nil
}

// attempt clones the original request with the given bearer token. Retries get a fresh body.
func (p *pendingRequest) attempt(accessToken string) (*http.Request, error) {
	r := p.req.Clone(p.req.Context())
	if p.retried && p.req.Body != nil && p.req.Body != http.NoBody {
		body, err := p.req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "replay request body")
		}
		r.Body = body
	}
	r.Header.Set(RequestIDHeader, p.requestID)
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(r)
	}
	return r, nil
}

// Transport is an http.RoundTripper that attaches the session's access token, and on a 401
// refreshes the session through the Coordinator and retries the request once.
//
// A request that already carries an Authorization header is sent untouched and never refreshed.
type Transport struct {
	base        http.RoundTripper
	store       session.Store
	coordinator *refresh.Coordinator
	metrics     *metrics.Metrics
}

var _ http.RoundTripper = (*Transport)(nil)

type TransportOption func(*Transport)

// WithBase sets the underlying RoundTripper. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

func WithMetrics(m *metrics.Metrics) TransportOption {
	return func(t *Transport) {
		t.metrics = m
	}
}

func NewTransport(store session.Store, coordinator *refresh.Coordinator, options ...TransportOption) (*Transport, error) {
	if store == nil {
		return nil, errors.New("[NewTransport] store is required")
	}
	if coordinator == nil {
		return nil, errors.New("[NewTransport] coordinator is required")
	}
	t := &Transport{
		base:        http.DefaultTransport,
		store:       store,
		coordinator: coordinator,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.send(req)
	}

	ctx := req.Context()
	p := &pendingRequest{req: req, requestID: req.Header.Get(RequestIDHeader)}
	if p.requestID == "" {
		p.requestID = uuid.NewString()
	}

	sentToken := t.store.Get(ctx).AccessToken
	first, err := p.attempt(sentToken)
	if err != nil {
		return nil, err
	}
	resp, err := t.send(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !p.replayable() {
		return resp, nil
	}
	if sentToken == "" && t.store.Get(ctx).IsEmpty() {
		// Never signed in; there is nothing to refresh or tear down.
		return resp, nil
	}

	logger := log.With().Str("request_id", p.requestID).Str("path", req.URL.Path).Logger()
	logger.Debug().Msg("Access token rejected, refreshing session")

	fresh, err := t.coordinator.Refresh(ctx, sentToken)
	discard(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ClassifyError(err)
		}
		return nil, apperrors.Join(apperrors.ErrUnauthorized, err)
	}

	p.retried = true
	retry, err := p.attempt(fresh.AccessToken)
	if err != nil {
		return nil, err
	}
	resp, err = t.send(retry)
	t.metrics.Retried(retryOutcome(resp, err))
	if err != nil {
		logger.Debug().Err(err).Msg("Retry failed")
		return nil, err
	}
	logger.Debug().Int("status", resp.StatusCode).Msg("Retried with refreshed session")
	return resp, nil
}

func (t *Transport) send(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return resp, nil
}

func retryOutcome(resp *http.Response, err error) string {
	switch {
	case err != nil:
		return "error"
	case resp.StatusCode == http.StatusUnauthorized:
		return "unauthorized"
	case resp.StatusCode < 400:
		return "ok"
	}
	return strconv.Itoa(resp.StatusCode/100) + "xx"
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
