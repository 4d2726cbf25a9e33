package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Satyam1603/GoTogether/internal/common"
)

const maxResponseBytes = 1 << 20

// HTTPClient talks to the JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for baseURL, which must include the API base
// path (for example "http://localhost:8080/gotogether").
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, "", Request{Method: http.MethodPost, Path: "/users/register", Body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	body := map[string]string{"login": login, "password": password}
	var out AuthResult
	if err := c.do(ctx, "", Request{Method: http.MethodPost, Path: "/users/login", Body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var out Tokens
	if err := c.do(ctx, "", Request{Method: http.MethodPost, Path: "/users/refresh-token", Body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.do(ctx, "", Request{Method: http.MethodPost, Path: "/users/logout", Body: body}, nil)
}

func (c *HTTPClient) Send(ctx context.Context, accessToken string, req Request, out any) error {
	return c.do(ctx, accessToken, req, out)
}

func (c *HTTPClient) do(ctx context.Context, accessToken string, r Request, out any) error {
	u := c.baseURL + r.Path
	if len(r.Query) > 0 {
		q := url.Values{}
		for k, v := range r.Query {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return decodeResponse(resp.StatusCode, raw, out)
}

// decodeResponse applies the envelope rules: 2xx carries {"data": ...} (or
// nothing for 204) and anything else carries {"message", "code"}.
func decodeResponse(status int, raw []byte, out any) error {
	if status >= 200 && status < 300 {
		if out == nil || status == http.StatusNoContent {
			return nil
		}
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 || string(env.Data) == "null" {
			return fmt.Errorf("%w: status %d without data", ErrUnexpectedResponse, status)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return nil
	}

	var body struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		ae := &APIError{Status: status}
		return errors.Join(ae, ErrUnexpectedResponse)
	}
	return &APIError{Status: status, Code: body.Code, Message: body.Message}
}
