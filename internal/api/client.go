// Package api implements the HTTP client for the RFP assistant backend.
// The backend is opaque: four endpoints under a configurable base URL, plus
// the TOTP provisioning endpoint used by the 2fa-setup subcommand. Every call
// performs exactly one round trip; there are no retries and no cancellation
// beyond the caller's context.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"rfpchat/internal/logging"
)

// DefaultBaseURL is the development host the backend binds to.
const DefaultBaseURL = "http://localhost:8000"

// Turn is a single conversational exchange entry on the wire. The chat
// endpoint receives the full ordered history as []Turn so the backend stays
// stateless between requests. System and display-only entries never appear
// here.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LoginResult is the outcome of a successful credential check. Exactly one of
// AccessToken or Requires2FA is meaningful: a user with a second factor
// enabled gets Requires2FA=true and no token yet.
type LoginResult struct {
	AccessToken string
	Requires2FA bool
}

// Client talks to the assistant backend.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a Client for the given base URL. An empty baseURL falls back to
// DefaultBaseURL. Transport settings follow the usual pooled defaults with an
// overall per-request timeout; document ingestion can be slow, so callers
// should size the timeout generously.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string { return c.baseURL }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type chatRequest struct {
	UserInput string `json:"user_input"`
	History   []Turn `json:"history"`
}

// tokenResponse covers both auth endpoints; requires_2fa only ever shows up
// on /login.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Requires2FA bool   `json:"requires_2fa"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// failureBody is the union of the backend's two failure shapes: auth
// endpoints answer {"detail": reason}, upload and chat answer
// {"error": reason}.
type failureBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Login checks the primary credentials. A success either carries the bearer
// token directly or signals that a second factor is required.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var out tokenResponse
	if err := c.postJSON(ctx, "login", "/login", loginRequest{Username: username, Password: password}, "", &out); err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: out.AccessToken, Requires2FA: out.Requires2FA}, nil
}

// VerifySecondFactor submits a one-time code for a login that reported
// requires_2fa. On success it returns the bearer token.
func (c *Client) VerifySecondFactor(ctx context.Context, username, code string) (string, error) {
	var out tokenResponse
	if err := c.postJSON(ctx, "verify", "/2fa/verify", verifyRequest{Username: username, Token: code}, "", &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Chat sends the user's new input plus the reconstructed prior history and
// returns the assistant's reply text. The credential is attached as a bearer
// header.
func (c *Client) Chat(ctx context.Context, credential, userInput string, history []Turn) (string, error) {
	if history == nil {
		history = []Turn{}
	}
	var out chatResponse
	if err := c.postJSON(ctx, "chat", "/chat", chatRequest{UserInput: userInput, History: history}, credential, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Upload streams the document at path as the multipart form field "file".
// The credential is attached as a bearer header even though the original wire
// contract omitted it: the UI gates uploads on authentication, so the wire
// now matches the gate.
func (c *Client) Upload(ctx context.Context, credential, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	if err := mw.Close(); err != nil {
		return &TransportError{Op: "upload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return &TransportError{Op: "upload", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setBearer(req, credential)

	resp, err := c.httpc.Do(req)
	if err != nil {
		logging.Get(logging.CategoryUpload).Warn("upload transport failure", zap.Error(err))
		return &TransportError{Op: "upload", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejected("upload", resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// TwoFactorSetup fetches the TOTP provisioning QR code for a user as PNG
// bytes. This is a CLI convenience, not part of the interactive session flow.
func (c *Client) TwoFactorSetup(ctx context.Context, username string) ([]byte, error) {
	u := c.baseURL + "/2fa/setup?username=" + url.QueryEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Op: "2fa-setup", Err: err}
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "2fa-setup", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, rejected("2fa-setup", resp)
	}
	return io.ReadAll(resp.Body)
}

// postJSON performs one JSON round trip. credential may be empty for the
// unauthenticated auth endpoints.
func (c *Client) postJSON(ctx context.Context, op, path string, in any, credential string, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req, credential)

	resp, err := c.httpc.Do(req)
	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("transport failure",
			zap.String("op", op), zap.Error(err))
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejected(op, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// rejected turns a non-2xx response into a RejectedError, extracting the
// server-supplied reason from whichever failure field the endpoint uses.
func rejected(op string, resp *http.Response) error {
	reason := ""
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		var fb failureBody
		if json.Unmarshal(body, &fb) == nil {
			if fb.Detail != "" {
				reason = fb.Detail
			} else if fb.Error != "" {
				reason = fb.Error
			}
		}
	}
	if reason == "" {
		reason = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	logging.Get(logging.CategoryAPI).Warn("request rejected",
		zap.String("op", op), zap.Int("status", resp.StatusCode), zap.String("reason", reason))
	return &RejectedError{Op: op, Status: resp.StatusCode, Reason: reason}
}

func setBearer(req *http.Request, credential string) {
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
}
