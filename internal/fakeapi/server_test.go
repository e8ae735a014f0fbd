package fakeapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-reader-client/apiclient"
	"github.com/jrsteele09/go-reader-client/content"
	"github.com/jrsteele09/go-reader-client/internal/fakeapi"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "alice"
	testEmail    = "alice@example.com"
	testPassword = "secret"
)

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	api    *fakeapi.Server
	server *httptest.Server
}

func setupTestFixture(t *testing.T, options ...fakeapi.Option) *testFixture {
	t.Helper()
	api, err := fakeapi.New(fakeapi.Settings{JWTSecret: "test-secret"}, options...)
	require.NoError(t, err)
	require.NoError(t, api.AddUser(testUsername, testEmail, testPassword))

	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return &testFixture{api: api, server: server}
}

func (f *testFixture) login(t *testing.T, username, password string) (*http.Response, tokenPair) {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}, "grant_type": {"password"}}
	resp, err := http.PostForm(f.server.URL+apiclient.RouteLogin, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var pair tokenPair
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	}
	return resp, pair
}

func (f *testFixture) refresh(t *testing.T, refreshToken string) (*http.Response, tokenPair) {
	t.Helper()
	body := `{"refresh_token":"` + refreshToken + `"}`
	resp, err := http.Post(f.server.URL+apiclient.RouteRefresh, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var pair tokenPair
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	}
	return resp, pair
}

func (f *testFixture) getNovels(t *testing.T, accessToken string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+apiclient.RouteNovels, nil)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := fakeapi.New(fakeapi.Settings{})
	require.Error(t, err)
	_, err = fakeapi.New(nil)
	require.Error(t, err)
}

func TestLoginIssuesPair(t *testing.T) {
	f := setupTestFixture(t)

	resp, pair := f.login(t, testUsername, testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, int64(1), f.api.LoginCalls())

	require.Equal(t, http.StatusOK, f.getNovels(t, pair.AccessToken))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.login(t, testUsername, "wrong")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.login(t, "nobody", testPassword)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshRotatesAndSpendsToken(t *testing.T) {
	f := setupTestFixture(t)
	_, first := f.login(t, testUsername, testPassword)

	resp, second := f.refresh(t, first.RefreshToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.NotEqual(t, first.AccessToken, second.AccessToken)

	resp, _ = f.refresh(t, first.RefreshToken)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int64(2), f.api.RefreshCalls())
}

func TestExpiredRefreshTokenIsRejected(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	api, err := fakeapi.New(fakeapi.Settings{JWTSecret: "test-secret", RefreshTokenExpiry: time.Hour},
		fakeapi.WithNowFunc(c.Now))
	require.NoError(t, err)
	require.NoError(t, api.AddUser(testUsername, testEmail, testPassword))
	server := httptest.NewServer(api)
	defer server.Close()
	f := &testFixture{api: api, server: server}

	_, pair := f.login(t, testUsername, testPassword)
	c.Advance(2 * time.Hour)

	resp, _ := f.refresh(t, pair.RefreshToken)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	f := setupTestFixture(t)

	require.Equal(t, http.StatusUnauthorized, f.getNovels(t, ""))
	require.Equal(t, http.StatusUnauthorized, f.getNovels(t, "not-a-jwt"))
}

func TestRevokedAccessTokenIsRejectedButRefreshWorks(t *testing.T) {
	f := setupTestFixture(t)
	_, pair := f.login(t, testUsername, testPassword)

	f.api.RevokeAccessTokens()
	require.Equal(t, http.StatusUnauthorized, f.getNovels(t, pair.AccessToken))

	resp, fresh := f.refresh(t, pair.RefreshToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, http.StatusOK, f.getNovels(t, fresh.AccessToken))
}

func TestRevokedRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	_, pair := f.login(t, testUsername, testPassword)

	require.NoError(t, f.api.RevokeRefreshToken(testUsername))
	resp, _ := f.refresh(t, pair.RefreshToken)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := setupTestFixture(t)
	post := func(body string) int {
		resp, err := http.Post(f.server.URL+apiclient.RouteRegister, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusCreated, post(`{"username":"bob","email":"bob@example.com","password":"pw"}`))
	require.Equal(t, http.StatusConflict, post(`{"username":"bob","email":"other@example.com","password":"pw"}`))
	require.Equal(t, http.StatusConflict, post(`{"username":"carol","email":"bob@example.com","password":"pw"}`))
	require.Equal(t, http.StatusUnprocessableEntity, post(`{"username":"dave","email":"not-an-email","password":"pw"}`))

	resp, _ := f.login(t, "bob", "pw")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSeededNovelIsListed(t *testing.T) {
	f := setupTestFixture(t)
	novel, err := f.api.AddNovel(content.NewNovel{Title: "Shadow Slave", SourceURL: "https://example.com/ss", Type: content.TypeNovel}, 3)
	require.NoError(t, err)
	require.Equal(t, 3, novel.TotalChapters)

	_, pair := f.login(t, testUsername, testPassword)
	req, err := http.NewRequest(http.MethodGet, f.server.URL+apiclient.RouteNovels, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var novels []content.Novel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&novels))
	require.Len(t, novels, 1)
	require.Equal(t, novel.ID, novels[0].ID)
}

func TestProgressRejectsOutOfRangeValues(t *testing.T) {
	f := setupTestFixture(t)
	novel, err := f.api.AddNovel(content.NewNovel{Title: "Shadow Slave", SourceURL: "https://example.com/ss", Type: content.TypeNovel}, 1)
	require.NoError(t, err)
	_, pair := f.login(t, testUsername, testPassword)

	post := func(progress string) int {
		route := strings.NewReplacer("{novelId}", novel.ID, "{chapterNumber}", "1").Replace(apiclient.RouteChapterProgress)
		req, err := http.NewRequest(http.MethodPost, f.server.URL+route+"?progress="+progress, strings.NewReader("{}"))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, post("50"))
	require.Equal(t, http.StatusUnprocessableEntity, post("NaN"))
	require.Equal(t, http.StatusUnprocessableEntity, post("101"))
	require.Equal(t, http.StatusUnprocessableEntity, post("-1"))
}
