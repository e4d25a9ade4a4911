package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexanderramin/examdesk/internal/session"
)

// LoginResult is the data of a successful login.
type LoginResult struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         session.User `json:"user"`
}

// Credentials returns the token pair of the login.
func (r LoginResult) Credentials() session.Credentials {
	return session.Credentials{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	env, err := call[LoginResult](ctx, c, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return LoginResult{}, err
	}
	return env.Data, nil
}

// RefreshToken exchanges refreshToken for a new pair. The refresh token in the
// result may be empty when the server does not rotate it.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (session.Credentials, error) {
	env, err := call[session.Credentials](ctx, c, http.MethodPost, "/auth/refresh-token", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return session.Credentials{}, err
	}
	return env.Data, nil
}

// ChangePassword returns the server's confirmation message.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) (string, error) {
	env, err := call[struct{}](ctx, c, http.MethodPost, "/auth/change-password", changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := call[struct{}](ctx, c, http.MethodPost, "/auth/logout", struct{}{})
	return err
}

// AuthService ties the auth endpoints to the session store.
//
// Public must not route through the auth transport: a wrong password answered
// with 401 would otherwise start a refresh. Authed carries the bearer token.
type AuthService struct {
	Public *Client
	Authed *Client
	Store  session.Store
}

// NewAuthService creates an AuthService.
func NewAuthService(public, authed *Client, store session.Store) *AuthService {
	return &AuthService{Public: public, Authed: authed, Store: store}
}

// Login stores the token pair and user only when the server reports success.
func (s *AuthService) Login(ctx context.Context, email, password string) (session.User, error) {
	res, err := s.Public.Login(ctx, email, password)
	if err != nil {
		return session.User{}, err
	}
	if res.AccessToken == "" {
		return session.User{}, &EnvelopeError{Message: "login response carried no access token"}
	}
	if err := s.Store.SaveCredentials(ctx, res.Credentials()); err != nil {
		return session.User{}, fmt.Errorf("saving credentials: %w", err)
	}
	if err := s.Store.SaveUser(ctx, res.User); err != nil {
		return session.User{}, fmt.Errorf("saving user: %w", err)
	}
	return res.User, nil
}

// Logout tells the server and clears the local session whatever it answers.
func (s *AuthService) Logout(ctx context.Context) error {
	apiErr := s.Authed.Logout(ctx)
	if err := s.Store.Clear(ctx); err != nil {
		return errors.Join(apiErr, fmt.Errorf("clearing session: %w", err))
	}
	return apiErr
}

// ChangePassword changes the password of the logged-in user.
func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) (string, error) {
	return s.Authed.ChangePassword(ctx, oldPassword, newPassword)
}

// Refresh implements transport.Refresher.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (session.Credentials, error) {
	return s.Public.RefreshToken(ctx, refreshToken)
}
