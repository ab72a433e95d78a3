package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vroomly/rentclient/internal/client/models"
	"github.com/vroomly/rentclient/internal/common"
	"github.com/vroomly/rentclient/internal/logging"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"
	revokePath  = "/auth/revoke"

	maxBodySize = 1 << 20
)

// HTTPClient speaks the backend's JSON-over-HTTP contract. It never retries
// and never refreshes; Gateway layers session handling on top of it.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// response is a fully read API response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// send performs one HTTP round trip. Transport failures come back as
// ErrNetwork; any status code is returned as a response for the caller to
// classify.
func (c *HTTPClient) send(ctx context.Context, method, path, accessToken string, body any) (*response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}
	requestID := uuid.NewString()
	req.Header.Set(common.RequestIDHeaderName, requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "api request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, networkError(fmt.Errorf("read response: %w", err))
	}

	c.log.Debug(ctx, "api request",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(started))

	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// errorFor converts a non-2xx response into an *APIError. It returns nil for
// 2xx responses.
func errorFor(r *response) error {
	if r.status >= 200 && r.status < 300 {
		return nil
	}
	apiErr := &APIError{
		Kind:       kindForStatus(r.status),
		StatusCode: r.status,
		Message:    errorMessage(r.body),
	}
	if r.status == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(strings.TrimSpace(r.header.Get("Retry-After"))); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}

// errorMessage extracts {"message": ...} or {"error": ...} from a body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func decode(r *response, out any) error {
	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Expires      flexTime `json:"expires"`
}

type refreshRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type revokeRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges email and password for a credential pair.
func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (models.Credentials, error) {
	resp, err := c.send(ctx, http.MethodPost, loginPath, "", loginRequest{Email: email, Password: string(password)})
	if err != nil {
		return models.Credentials{}, err
	}
	if err := errorFor(resp); err != nil {
		return models.Credentials{}, err
	}

	var out loginResponse
	if err := decode(resp, &out); err != nil {
		return models.Credentials{}, err
	}
	if out.Token == "" || out.RefreshToken == "" {
		return models.Credentials{}, fmt.Errorf("%w: login response without tokens", ErrServer)
	}

	expiresAt := out.Expires.Time
	if expiresAt.IsZero() {
		expiresAt = tokenExpiry(out.Token)
	}
	return models.Credentials{AccessToken: out.Token, RefreshToken: out.RefreshToken, ExpiresAt: expiresAt}, nil
}

// Refresh trades the pair for a new one. The endpoint does not report an
// expiry, so it is read from the new access token's exp claim when present.
func (c *HTTPClient) Refresh(ctx context.Context, creds models.Credentials) (models.Credentials, error) {
	body := refreshRequest{Token: creds.AccessToken, RefreshToken: creds.RefreshToken}
	resp, err := c.send(ctx, http.MethodPost, refreshPath, "", body)
	if err != nil {
		return models.Credentials{}, err
	}
	if err := errorFor(resp); err != nil {
		return models.Credentials{}, err
	}

	var out refreshResponse
	if err := decode(resp, &out); err != nil {
		return models.Credentials{}, err
	}
	if out.Token == "" {
		return models.Credentials{}, fmt.Errorf("%w: refresh response without token", ErrServer)
	}
	refreshToken := out.RefreshToken
	if refreshToken == "" {
		// server without rotation keeps the old refresh token valid
		refreshToken = creds.RefreshToken
	}
	return models.Credentials{AccessToken: out.Token, RefreshToken: refreshToken, ExpiresAt: tokenExpiry(out.Token)}, nil
}

// Revoke invalidates a refresh token on the server.
func (c *HTTPClient) Revoke(ctx context.Context, refreshToken string) error {
	resp, err := c.send(ctx, http.MethodPost, revokePath, "", revokeRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return errorFor(resp)
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature;
// the client only needs the deadline, the server does the verification.
// Zero when the token is opaque or carries no exp.
func tokenExpiry(raw string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// flexTime accepts an RFC 3339 string or unix seconds.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if secs, err := strconv.ParseInt(unquoted, 10, 64); err == nil {
			t.Time = time.Unix(secs, 0)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, unquoted)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", unquoted, err)
		}
		t.Time = parsed
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid time %s: %w", s, err)
	}
	t.Time = time.Unix(int64(secs), 0)
	return nil
}
