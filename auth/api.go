package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-reader-client/apiclient"
	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
	"github.com/jrsteele09/go-reader-client/oauthmodel"
	"github.com/jrsteele09/go-reader-client/refresh"
	"github.com/jrsteele09/go-reader-client/session"
	"golang.org/x/oauth2"
)

const maxErrorBody = 64 << 10

// API calls the unauthenticated auth endpoints. It must be given an HTTP client that does not
// go through the authenticated transport, otherwise a rejected refresh would try to refresh
// itself.
type API struct {
	baseURL     string
	httpClient  *http.Client
	oauthConfig *oauth2.Config
}

var _ refresh.Refresher = (*API)(nil)

// NewAPI creates the auth endpoint client. A nil httpClient uses http.DefaultClient.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &API{
		baseURL:    baseURL,
		httpClient: httpClient,
		oauthConfig: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + apiclient.RouteLogin,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Login posts username, password and grant_type=password as a form to the token endpoint.
func (a *API) Login(ctx context.Context, credentials oauthmodel.Credentials) (*oauthmodel.TokenResponse, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := a.oauthConfig.PasswordCredentialsToken(ctx, credentials.Username, credentials.Password)
	if err != nil {
		return nil, loginError(err)
	}

	return &oauthmodel.TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
	}, nil
}

// Refresh exchanges a refresh token for a new pair.
func (a *API) Refresh(ctx context.Context, refreshToken string) (session.Session, error) {
	var response oauthmodel.RefreshResponse
	if err := a.postJSON(ctx, apiclient.RouteRefresh, oauthmodel.RefreshRequest{RefreshToken: refreshToken}, &response); err != nil {
		return session.Session{}, err
	}
	return response.Session(), nil
}

// Register creates an account. It does not log in.
func (a *API) Register(ctx context.Context, request oauthmodel.RegisterRequest) (*oauthmodel.RegisteredUser, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	var user oauthmodel.RegisteredUser
	if err := a.postJSON(ctx, apiclient.RouteRegister, request, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *API) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apiclient.ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apiclient.NewStatusError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// loginError maps x/oauth2 failures onto the client's error kinds. Rejected credentials come
// back as 4xx and are validation failures.
func loginError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if apperrors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		statusErr := apiclient.NewStatusError(retrieveErr.Response.StatusCode, retrieveErr.Body)
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			return apperrors.Join(apperrors.ErrValidation, statusErr)
		}
		return statusErr
	}
	if strings.Contains(err.Error(), "missing access_token") {
		return apperrors.Wrapf(apperrors.ErrInvalidToken, "login response")
	}
	return apiclient.ClassifyError(err)
}
