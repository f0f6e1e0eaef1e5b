package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	app "silkyroad/src/app"
)

// Session is the token pair issued by the auth API.
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	TokenType    string        `json:"token_type"`
	User         *app.Identity `json:"user"`
}

type SignUpRequest struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	RedirectTo string
}

// AuthClient wraps the backend auth endpoints.
type AuthClient struct {
	base *Client
}

func NewAuthClient(base *Client) *AuthClient {
	return &AuthClient{base: base}
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": []string{redirectTo}}
}

// SignUp registers an identity; the backend sends the confirmation email.
func (a *AuthClient) SignUp(ctx context.Context, req SignUpRequest) (*app.Identity, error) {
	body := map[string]any{
		"email":    req.Email,
		"password": req.Password,
		"data": map[string]string{
			"first_name": req.FirstName,
			"last_name":  req.LastName,
		},
	}
	raw, err := a.base.do(ctx, "sign up", call{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		query:  redirectQuery(req.RedirectTo),
		body:   body,
		key:    publicKey,
	})
	if err != nil {
		return nil, err
	}
	var identity app.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("decode sign up response: %w", err)
	}
	return &identity, nil
}

func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return a.token(ctx, "password", map[string]string{"email": email, "password": password})
}

// SignInWithIDToken trades a verified OpenID Connect ID token for a session.
func (a *AuthClient) SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*Session, error) {
	body := map[string]string{"provider": provider, "id_token": idToken}
	if nonce != "" {
		body["nonce"] = nonce
	}
	return a.token(ctx, "id_token", body)
}

func (a *AuthClient) token(ctx context.Context, grant string, body any) (*Session, error) {
	raw, err := a.base.do(ctx, "token "+grant, call{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": []string{grant}},
		body:   body,
		key:    publicKey,
	})
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := a.base.do(ctx, "sign out", call{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		key:    publicKey,
		bearer: accessToken,
	})
	return err
}

// ResetPasswordForEmail asks the backend to mail a recovery link.
func (a *AuthClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	_, err := a.base.do(ctx, "recover", call{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  redirectQuery(redirectTo),
		body:   map[string]string{"email": email},
		key:    publicKey,
	})
	return err
}

// GetUser resolves an access token to its identity through the auth API.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*app.Identity, error) {
	raw, err := a.base.do(ctx, "get user", call{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		key:    publicKey,
		bearer: accessToken,
	})
	if err != nil {
		return nil, err
	}
	var identity app.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &identity, nil
}

// DeleteUser removes an identity from the auth store. Requires the service key.
func (a *AuthClient) DeleteUser(ctx context.Context, userID string) error {
	_, err := a.base.do(ctx, "delete user", call{
		method: http.MethodDelete,
		path:   "/auth/v1/admin/users/" + url.PathEscape(userID),
		key:    serviceKey,
	})
	return err
}
