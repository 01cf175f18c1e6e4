package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/shared"
)

const maxResponseBody = 1 << 20

type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) Register(ctx context.Context, req shared.RegisterRequest) (*shared.Result, error) {
	return c.result(ctx, http.MethodPost, "/api/register", req)
}

func (c *HTTPClient) Login(ctx context.Context, req shared.LoginRequest) (*shared.Result, error) {
	return c.result(ctx, http.MethodPost, "/api/login", req)
}

func (c *HTTPClient) Logout(ctx context.Context) (*shared.Result, error) {
	return c.result(ctx, http.MethodPost, "/api/logout", nil)
}

func (c *HTTPClient) User(ctx context.Context) (*shared.User, error) {
	if c.Token() == "" {
		return nil, ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/api/user", nil, "")
	if err != nil {
		return nil, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, status)
	}

	var u shared.User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &u, nil
}

// UpdateProfile sends the update as POST with a PUT override, as JSON or,
// when a photo is attached, as multipart form data.
func (c *HTTPClient) UpdateProfile(ctx context.Context, p shared.ProfileRequest, photo *Photo) (*shared.Result, error) {
	if photo == nil {
		return c.result(ctx, http.MethodPut, "/api/user/profile-information", p)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", p.Name); err != nil {
		return nil, err
	}
	if err := mw.WriteField("email", p.Email); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("photo", photo.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(photo.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPut, "/api/user/profile-information", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return c.decodeResult(req)
}

func (c *HTTPClient) result(ctx context.Context, method, path string, payload any) (*shared.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	contentType := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	return c.decodeResult(req)
}

// decodeResult reads the result envelope. The body's status wins over the
// HTTP status, which lets the client talk to servers answering everything
// with HTTP 200.
func (c *HTTPClient) decodeResult(req *http.Request) (*shared.Result, error) {
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var r shared.Result
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: status %d: %v", ErrUnexpectedResponse, status, err)
	}
	if r.Status == 0 {
		r.Status = status
	}
	return &r, nil
}

// newRequest builds a request against the API. Methods other than GET and
// POST travel as POST with the override header.
func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	wire := method
	if method != http.MethodGet && method != http.MethodPost {
		wire = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, wire, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if wire != method {
		req.Header.Set(common.MethodOverrideHeaderName, method)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}
	return req, nil
}

func (c *HTTPClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}
