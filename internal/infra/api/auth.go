package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/streambox/internal/domain/user"
)

// Backend acknowledgement texts.
const (
	LoginAccepted    = "Login successful!"
	RegisterAccepted = "User registered successfully!"
)

// ErrAuthRejected is returned when the backend does not acknowledge a login or registration.
var ErrAuthRejected = errors.New("authentication rejected")

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Login authenticates against the backend. The backend only answers with an
// acknowledgement text, so the account ID is looked up in the user listing; when
// that fails a temporary ID derived from the clock is used.
func (c *Client) Login(ctx context.Context, username, password string) (*user.Session, error) {
	if username == "" || password == "" {
		return nil, errors.Mark(errors.New("username and password are required"), ErrAuthRejected)
	}
	if err := c.acknowledge(ctx, "/auth/login", credentials{Username: username, Password: password}, LoginAccepted); err != nil {
		return nil, errors.Wrap(err, "login failed")
	}

	id := strconv.FormatInt(time.Now().UnixMilli(), 10)
	email := username + "@example.com"
	if users, err := c.Users(ctx); err != nil {
		zlog.Debug().Err(err).Msg("api: user listing unavailable, using temporary id")
	} else {
		for _, u := range users {
			if strings.EqualFold(u.Username, username) {
				id = u.ID
				if u.Email != "" {
					email = u.Email
				}
				break
			}
		}
	}
	return user.NewSession(id, username, email), nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	if err := user.ValidateRegistration(username, email, password); err != nil {
		return err
	}
	body := credentials{Username: username, Email: email, Password: password}
	if err := c.acknowledge(ctx, "/auth/register", body, RegisterAccepted); err != nil {
		return errors.Wrap(err, "registration failed")
	}
	return nil
}

// ForgotPassword asks the backend to start a password reset and returns its message.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", errors.New("email is required")
	}
	resp, err := c.Request(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email})
	if err != nil {
		return "", errors.Wrap(err, "password reset failed")
	}
	if resp.IsJSON() {
		var body struct {
			Message string `json:"message"`
		}
		if err := resp.Decode(&body); err == nil && body.Message != "" {
			return body.Message, nil
		}
	}
	return resp.Text(), nil
}

// acknowledge posts body and requires the exact acknowledgement text. Any other
// answer, including error statuses, is surfaced as the rejection message.
func (c *Client) acknowledge(ctx context.Context, endpoint string, body any, want string) error {
	resp, err := c.Request(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) {
			return errors.Mark(errors.Newf("%s", herr.Message), ErrAuthRejected)
		}
		return err
	}
	if text := resp.Text(); text != want {
		if text == "" {
			text = "unexpected empty response"
		}
		return errors.Mark(errors.Newf("%s", text), ErrAuthRejected)
	}
	return nil
}
