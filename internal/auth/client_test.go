package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidclient/internal/platform/logger"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Login(t *testing.T) {
	var got credentials
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, loginPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		switch got.Password {
		case "secret":
			io.WriteString(w, `{"message":"Login successful","tgt":"TGT-1"}`)
		case "modern":
			io.WriteString(w, `{"message":"ok","token":"jwt-abc","tgt":"TGT-old"}`)
		case "soft":
			io.WriteString(w, `{"error":"account locked"}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"Invalid credentials"}`)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client(), logger.Discard())

	t.Run("legacy_tgt_field", func(t *testing.T) {
		res, err := c.Login(context.Background(), "a@b.c", "secret")
		require.NoError(t, err)
		assert.Equal(t, "TGT-1", res.Token)
		assert.Equal(t, "Login successful", res.Message)
		assert.Equal(t, credentials{Email: "a@b.c", Password: "secret"}, got)
	})

	t.Run("token_preferred", func(t *testing.T) {
		res, err := c.Login(context.Background(), "a@b.c", "modern")
		require.NoError(t, err)
		assert.Equal(t, "jwt-abc", res.Token)
	})

	t.Run("error_body_with_ok_status", func(t *testing.T) {
		_, err := c.Login(context.Background(), "a@b.c", "soft")
		require.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "account locked")
	})

	t.Run("unauthorized", func(t *testing.T) {
		_, err := c.Login(context.Background(), "a@b.c", "wrong")
		require.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "Invalid credentials")
	})

	t.Run("missing_fields", func(t *testing.T) {
		_, err := c.Login(context.Background(), " ", "x")
		require.ErrorIs(t, err, ErrMissingField)
	})
}

func TestClient_Register(t *testing.T) {
	var raw map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, registerPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		if raw["username"] == "taken" {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, "username already exists")
			return
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"User registered successfully"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), logger.Discard())
	reg := Registration{
		Username:        "ada",
		Email:           "ada@example.com",
		DateOfBirth:     "1990-12-10",
		Password:        "pw",
		PasswordConfirm: "pw",
	}

	res, err := c.Register(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", res.Message)
	assert.Empty(t, res.Token)
	assert.Equal(t, map[string]string{
		"username":         "ada",
		"email":            "ada@example.com",
		"dateOfBirth":      "1990-12-10",
		"password":         "pw",
		"password_confirm": "pw",
	}, raw)

	reg.Username = "taken"
	_, err = c.Register(context.Background(), reg)
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "username already exists")

	_, err = c.Register(context.Background(), Registration{Email: "x@y.z", Password: "pw"})
	require.ErrorIs(t, err, ErrMissingField)
}

func TestClient_transport_error(t *testing.T) {
	c := NewClient("http://auth.test", doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}), logger.Discard())

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "connection refused")
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }
