package pi360

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const loginEndpoint = "login.php"

var ErrMissingCredentials = errors.New("email and password are required")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("login: %w", ErrMissingCredentials)
	}

	var res loginResponse
	if err := c.Do(ctx, http.MethodPost, loginEndpoint, loginRequest{Email: email, Password: password}, &res); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if strings.TrimSpace(res.Token) == "" {
		return errors.New("login: response carried no token")
	}

	c.session.SetToken(res.Token)
	return nil
}

// Logout clears the session; the PHP backend keeps no server-side session to end.
func (c *Client) Logout() {
	c.session.Logout()
}
