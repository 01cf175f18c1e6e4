package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/logging"
	"github.com/waonpad/benkyo-1/internal/server/config"
	"github.com/waonpad/benkyo-1/internal/server/models"
	"github.com/waonpad/benkyo-1/internal/server/services"
	"github.com/waonpad/benkyo-1/internal/server/throttle"
	"github.com/waonpad/benkyo-1/internal/server/validation"
	"github.com/waonpad/benkyo-1/internal/shared"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	registerIn    validation.RegisterInput
	registerCalls int
	registerRes   *services.AuthResult
	registerErr   error
	loginRes      *services.AuthResult
	loginErr      error
	presented     string
	tokens        map[string]*services.Identity
	logoutErr     error
	loggedOut     []int64
}

func (f *fakeAuth) Register(_ context.Context, in validation.RegisterInput) (*services.AuthResult, error) {
	f.registerIn = in
	f.registerCalls++
	return f.registerRes, f.registerErr
}

func (f *fakeAuth) Login(_ context.Context, _ validation.LoginInput, presented string) (*services.AuthResult, error) {
	f.presented = presented
	return f.loginRes, f.loginErr
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*services.Identity, error) {
	id, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return id, nil
}

func (f *fakeAuth) Logout(_ context.Context, id *services.Identity) error {
	if f.logoutErr != nil {
		return f.logoutErr
	}
	f.loggedOut = append(f.loggedOut, id.Token.ID)
	return nil
}

type fakeProfile struct {
	in    validation.ProfileInput
	photo *services.PhotoUpload
	err   error
	calls int
}

func (f *fakeProfile) Update(_ context.Context, u *models.User, in validation.ProfileInput, photo *services.PhotoUpload) (*models.User, error) {
	f.calls++
	f.in, f.photo = in, photo
	if f.err != nil {
		return nil, f.err
	}
	return u, nil
}

func (f *fakeProfile) PhotoURL(u *models.User) *string {
	if u.ProfilePhotoPath == nil {
		return nil
	}
	url := "http://cdn.test/" + *u.ProfilePhotoPath
	return &url
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeLimiter struct {
	allow   bool
	retry   time.Duration
	err     error
	keys    []string
	cleared []string
}

func (f *fakeLimiter) Hit(_ context.Context, key string) (bool, time.Duration, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.retry, f.err
}

func (f *fakeLimiter) Clear(_ context.Context, key string) error {
	f.cleared = append(f.cleared, key)
	return nil
}

var taro = &models.User{ID: 7, ScreenName: "taro", Name: "Taro", Email: "taro@example.com"}

type fixture struct {
	cfg     *config.Config
	auth    *fakeAuth
	profile *fakeProfile
	limiter throttle.Limiter
	db      fakePinger
}

func newFixture() *fixture {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return &fixture{
		cfg: cfg,
		auth: &fakeAuth{tokens: map[string]*services.Identity{
			"good": {User: taro, Token: &models.AccessToken{ID: 11, UserID: taro.ID}},
		}},
		profile: &fakeProfile{},
		limiter: throttle.Nop{},
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	s := NewServer(f.cfg, logging.Nop(), f.auth, f.profile, f.limiter, f.db)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) shared.Result {
	t.Helper()
	var r shared.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func TestRegister_Success(t *testing.T) {
	f := newFixture()
	f.auth.registerRes = &services.AuthResult{User: taro, Token: "tok"}

	rec := f.do(jsonRequest(http.MethodPost, "/api/register", `{"screen_name":"taro"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"status": 200,
		"message": "Registered successfully",
		"user": {"id": 7, "screen_name": "taro", "name": "Taro", "email": "taro@example.com"},
		"token": "tok"
	}`, rec.Body.String())
}

func TestRegister_ValidationErrors(t *testing.T) {
	verrs := &validation.Errors{}
	verrs.Add("email", "The email has already been taken.")

	tests := []struct {
		name   string
		legacy bool
		code   int
	}{
		{"real status", false, http.StatusUnprocessableEntity},
		{"legacy status", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.cfg.LegacyStatusCodes = tt.legacy
			f.auth.registerErr = verrs

			rec := f.do(jsonRequest(http.MethodPost, "/api/register", `{}`))

			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, `{"status":422,"validation_errors":{"email":["The email has already been taken."]}}`, rec.Body.String())
		})
	}
}

func TestRegister_MalformedBody(t *testing.T) {
	f := newFixture()
	rec := f.do(jsonRequest(http.MethodPost, "/api/register", `{`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_EmptyBodyReachesValidation(t *testing.T) {
	verrs := &validation.Errors{}
	verrs.Add("screen_name", "The screen name field is required.")

	f := newFixture()
	f.auth.registerErr = verrs

	rec := f.do(jsonRequest(http.MethodPost, "/api/register", ""))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 1, f.auth.registerCalls)
	assert.Equal(t, validation.RegisterInput{}, f.auth.registerIn)
	assert.JSONEq(t, `{"status":422,"validation_errors":{"screen_name":["The screen name field is required."]}}`, rec.Body.String())
}

func TestRegister_MistypedField(t *testing.T) {
	tests := []struct {
		name   string
		legacy bool
		code   int
	}{
		{"real status", false, http.StatusUnprocessableEntity},
		{"legacy status", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.cfg.LegacyStatusCodes = tt.legacy

			rec := f.do(jsonRequest(http.MethodPost, "/api/register", `{"screen_name":12345,"name":"Taro"}`))

			assert.Equal(t, tt.code, rec.Code)
			assert.Zero(t, f.auth.registerCalls)
			assert.JSONEq(t, `{"status":422,"validation_errors":{"screen_name":["The screen name must be a string."]}}`, rec.Body.String())
		})
	}
}

func TestLogin_MistypedField(t *testing.T) {
	f := newFixture()

	rec := f.do(jsonRequest(http.MethodPost, "/api/login", `{"email":"taro@example.com","password":true}`))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	r := decode(t, rec)
	require.NotNil(t, r.ValidationErrors)
	assert.Equal(t, []string{"The password must be a string."}, r.ValidationErrors.Messages("password"))
}

func TestRegister_InternalError(t *testing.T) {
	f := newFixture()
	f.auth.registerErr = errors.New("boom")

	rec := f.do(jsonRequest(http.MethodPost, "/api/register", `{}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server Error", decode(t, rec).Message)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"success", nil, http.StatusOK, "Logged in successfully"},
		{"bad credentials", common.ErrInvalidCredentials, http.StatusBadRequest, "Invalid credentials."},
		{"already logged in", common.ErrAlreadyLoggedIn, http.StatusBadRequest, "Already logged in."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			lim := &fakeLimiter{allow: true}
			f.limiter = lim
			f.auth.loginErr = tt.err
			if tt.err == nil {
				f.auth.loginRes = &services.AuthResult{User: taro, Token: "tok"}
			}

			req := jsonRequest(http.MethodPost, "/api/login", `{"email":"Taro@example.com","password":"x"}`)
			req.Header.Set("Authorization", "Bearer presented")
			rec := f.do(req)

			assert.Equal(t, tt.code, rec.Code)
			res := decode(t, rec)
			assert.Equal(t, tt.code, res.Status)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, "presented", f.auth.presented)
			require.Len(t, lim.keys, 1)
			assert.True(t, strings.HasPrefix(lim.keys[0], "login:taro@example.com|"))
			if tt.err == nil {
				assert.Equal(t, "tok", res.Token)
				assert.Equal(t, lim.keys, lim.cleared)
			} else {
				assert.Empty(t, lim.cleared)
			}
		})
	}
}

func TestLogin_Throttled(t *testing.T) {
	f := newFixture()
	f.limiter = &fakeLimiter{allow: false, retry: 42 * time.Second}

	rec := f.do(jsonRequest(http.MethodPost, "/api/login", `{"email":"a@b.c","password":"x"}`))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Equal(t, 429, decode(t, rec).Status)
}

func TestLogin_BrokenLimiterLetsThrough(t *testing.T) {
	f := newFixture()
	f.limiter = &fakeLimiter{err: errors.New("redis down")}
	f.auth.loginRes = &services.AuthResult{User: taro, Token: "tok"}

	rec := f.do(jsonRequest(http.MethodPost, "/api/login", `{"email":"a@b.c","password":"x"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerRoutes_Unauthenticated(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic good"},
		{"unknown token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.cfg.LegacyStatusCodes = true
			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := f.do(req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"status":401,"message":"Unauthenticated."}`, rec.Body.String())
		})
	}
}

func TestLogout(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer good")

	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"Logged out successfully"}`, rec.Body.String())
	assert.Equal(t, []int64{11}, f.auth.loggedOut)
}

func TestCurrentUser(t *testing.T) {
	f := newFixture()
	path := "profile-photos/7/a.png"
	u := *taro
	u.ProfilePhotoPath = &path
	u.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u.UpdatedAt = u.CreatedAt
	f.auth.tokens["good"].User = &u

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id": 7,
		"screen_name": "taro",
		"name": "Taro",
		"email": "taro@example.com",
		"email_verified_at": null,
		"profile_photo_url": "http://cdn.test/profile-photos/7/a.png",
		"created_at": "2024-01-02T03:04:05Z",
		"updated_at": "2024-01-02T03:04:05Z"
	}`, rec.Body.String())
}

func TestUpdateProfile_MethodOverrideJSON(t *testing.T) {
	f := newFixture()
	req := jsonRequest(http.MethodPost, "/api/user/profile-information", `{"name":"Taro Y","email":"ty@example.com"}`)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set("X-HTTP-Method-Override", "PUT")

	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, validation.ProfileInput{Name: "Taro Y", Email: "ty@example.com"}, f.profile.in)
	assert.Nil(t, f.profile.photo)
}

func TestUpdateProfile_PlainPostIsNotRouted(t *testing.T) {
	f := newFixture()
	req := jsonRequest(http.MethodPost, "/api/user/profile-information", `{}`)
	req.Header.Set("Authorization", "Bearer good")

	rec := f.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, f.profile.calls)
}

func TestUpdateProfile_Multipart(t *testing.T) {
	f := newFixture()
	f.cfg.MaxPhotoSize = 4

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Taro"))
	require.NoError(t, mw.WriteField("email", "taro@example.com"))
	part, err := mw.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("0123456789"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/user/profile-information", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer good")
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.profile.photo)
	assert.Equal(t, "me.png", f.profile.photo.Filename)
	assert.Equal(t, []byte("01234"), f.profile.photo.Data)
	assert.Equal(t, "Taro", f.profile.in.Name)
}

func TestUpdateProfile_ValidationErrors(t *testing.T) {
	f := newFixture()
	verrs := &validation.Errors{}
	verrs.Add("name", "The name field is required.")
	f.profile.err = verrs

	req := jsonRequest(http.MethodPut, "/api/user/profile-information", `{}`)
	req.Header.Set("Authorization", "Bearer good")
	rec := f.do(req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"The name field is required."}, decode(t, rec).ValidationErrors.Messages("name"))
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	f.db = fakePinger{err: errors.New("down")}
	rec = f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture()
	f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "benkyo_http_requests_total")
}

func TestRequestID(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := f.do(req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := f.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodOverride(t *testing.T) {
	var got string
	h := methodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.Method }))

	tests := []struct {
		method, header, want string
	}{
		{http.MethodPost, "put", http.MethodPut},
		{http.MethodPost, "DELETE", http.MethodDelete},
		{http.MethodPost, "GET", http.MethodPost},
		{http.MethodGet, "PUT", http.MethodGet},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", nil)
		req.Header.Set("X-HTTP-Method-Override", tt.header)
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, tt.want, got, "%s with %s", tt.method, tt.header)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture()
	s := NewServer(f.cfg, logging.Nop(), f.auth, f.profile, f.limiter, f.db)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
