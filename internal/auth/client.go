package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const (
	loginPath    = "/api/users/login"
	registerPath = "/api/users/register"

	maxResponseBytes = 64 << 10
)

var (
	// ErrRejected is returned when the service answers with an error body or a
	// non-2xx status.
	ErrRejected = errors.New("request rejected by auth service")

	// ErrMissingField is returned before any request when a required field is blank.
	ErrMissingField = errors.New("required field is empty")
)

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registration is the payload of a register request.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	DateOfBirth     string `json:"dateOfBirth"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Result is the outcome of an accepted request. Token is empty when the
// service issues none.
type Result struct {
	Message string
	Token   string
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type response struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	TGT     string `json:"tgt"`
	Error   string `json:"error"`
}

// Client talks to the user service. It holds no session state; the token it
// returns is opaque.
type Client struct {
	base string
	http Doer
	log  *slog.Logger
}

// NewClient returns a Client rooted at base, e.g. http://localhost:8081.
func NewClient(base string, client Doer, log *slog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{base: strings.TrimRight(base, "/"), http: client, log: log}
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (Result, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Result{}, fmt.Errorf("login: %w: email and password", ErrMissingField)
	}
	return c.post(ctx, loginPath, credentials{Email: email, Password: password})
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, r Registration) (Result, error) {
	switch {
	case strings.TrimSpace(r.Username) == "":
		return Result{}, fmt.Errorf("register: %w: username", ErrMissingField)
	case strings.TrimSpace(r.Email) == "":
		return Result{}, fmt.Errorf("register: %w: email", ErrMissingField)
	case r.Password == "":
		return Result{}, fmt.Errorf("register: %w: password", ErrMissingField)
	}
	return c.post(ctx, registerPath, r)
}

func (c *Client) post(ctx context.Context, path string, payload any) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("POST %s: read response: %w", path, err)
	}

	var out response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := out.Error
		if decodeErr != nil || reason == "" {
			reason = strings.TrimSpace(string(raw))
		}
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		c.log.Warn("auth request rejected",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("reason", reason))
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, reason)
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("POST %s: decode response: %w", path, decodeErr)
	}
	if out.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrRejected, out.Error)
	}

	token := out.Token
	if token == "" {
		token = out.TGT
	}
	c.log.Info("auth request accepted", slog.String("path", path), slog.Bool("token", token != ""))
	return Result{Message: out.Message, Token: token}, nil
}
