package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	app "silkyroad/src/app"
	cfg "silkyroad/src/configuration"
	db "silkyroad/src/repository"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	googleProvider   = "google"
	stateMaxAge      = 600
	refreshMaxAge    = 30 * 24 * 3600
	defaultMaxAge    = 3600
	dashboardPath    = "/dashboard"
	verifiedPage     = "/verified.html"
	passwordResetURL = "/reset.html"
)

type (
	// GoogleSignIn runs the OpenID Connect code flow against Google.
	GoogleSignIn struct {
		AuthConfig *oauth2.Config
		verifier   *oidc.IDTokenVerifier
	}

	AuthHandler struct {
		services               *Services
		sessions               *sessionReader
		siteURL                string
		domain                 string
		secure                 bool
		AccessTokenCookieName  string
		RefreshTokenCookieName string
		StateCookieName        string
		log                    logrus.FieldLogger
	}

	SignUpBody struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}

	LoginBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	ForgotBody struct {
		Email string `json:"email"`
	}
)

func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashNonce(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return hex.EncodeToString(sum[:])
}

// NewGoogleSignIn discovers the provider configuration.
func NewGoogleSignIn(ctx context.Context, config cfg.AuthProperties) (*GoogleSignIn, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
	defer cancel()
	provider, err := oidc.NewProvider(discoverCtx, config.Host)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}
	return &GoogleSignIn{
		AuthConfig: &oauth2.Config{
			ClientID:     config.ID,
			ClientSecret: config.Secret,
			RedirectURL:  config.Redirect,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ID}),
	}, nil
}

func NewAuthHandler(config *cfg.Properties, services *Services, sessions *sessionReader, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		services:               services,
		sessions:               sessions,
		siteURL:                strings.TrimRight(config.SiteURL, "/"),
		domain:                 config.Auth.CookieDomain,
		secure:                 config.Auth.SecureCookies,
		AccessTokenCookieName:  config.Auth.AccessTokenCookieName,
		RefreshTokenCookieName: config.Auth.RefreshTokenCookieName,
		StateCookieName:        config.Auth.StateCookieName,
		log:                    log,
	}
}

func (a *AuthHandler) setSession(c *gin.Context, session *db.Session) {
	maxAge := session.ExpiresIn
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.AccessTokenCookieName, session.AccessToken, maxAge, "/", a.domain, a.secure, true)
	c.SetCookie(a.RefreshTokenCookieName, session.RefreshToken, refreshMaxAge, "/", a.domain, a.secure, true)
}

func (a *AuthHandler) clearSession(c *gin.Context) {
	c.SetCookie(a.AccessTokenCookieName, "", -1, "/", a.domain, a.secure, true)
	c.SetCookie(a.RefreshTokenCookieName, "", -1, "/", a.domain, a.secure, true)
}

func (a *AuthHandler) SignUp(c *gin.Context) {
	var body SignUpBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	body.FirstName = strings.TrimSpace(body.FirstName)
	body.LastName = strings.TrimSpace(body.LastName)
	body.Email = strings.TrimSpace(body.Email)
	if body.FirstName == "" || body.LastName == "" {
		abortWithError(c, &app.ValidationError{Message: "First and last name required."}, http.StatusBadRequest)
		return
	}
	if body.Email == "" || strings.TrimSpace(body.Password) == "" {
		abortWithError(c, &app.ValidationError{Message: "Please fill in all fields."}, http.StatusBadRequest)
		return
	}

	_, err := a.services.Sessions.SignUp(c.Request.Context(), db.SignUpRequest{
		Email:      body.Email,
		Password:   strings.TrimSpace(body.Password),
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		RedirectTo: a.siteURL + verifiedPage,
	})
	if err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Success! Please check your email to confirm."})
}

func (a *AuthHandler) Login(c *gin.Context) {
	var body LoginBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	session, err := a.services.Sessions.SignInWithPassword(c.Request.Context(), strings.TrimSpace(body.Email), strings.TrimSpace(body.Password))
	var backend *app.BackendError
	if errors.As(err, &backend) && backend.Status >= http.StatusBadRequest && backend.Status < http.StatusInternalServerError {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
		return
	}
	if err != nil {
		abortWithError(c, err, http.StatusBadGateway)
		return
	}
	a.setSession(c, session)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": session.User})
}

func (a *AuthHandler) Logout(c *gin.Context) {
	if token := a.sessions.token(c); token != "" {
		if err := a.services.Sessions.SignOut(c.Request.Context(), token); err != nil {
			loggerFrom(c).WithError(err).Warn("sign out failed")
		}
	}
	a.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AuthHandler) Forgot(c *gin.Context) {
	var body ForgotBody
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" {
		abortWithError(c, &app.ValidationError{Field: "email", Message: "Please enter your email."}, http.StatusBadRequest)
		return
	}
	if err := a.services.Sessions.ResetPasswordForEmail(c.Request.Context(), email, a.siteURL+passwordResetURL); err != nil {
		abortWithError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reset email sent. Please check your inbox."})
}

// Session reports the signed-in identity.
func (a *AuthHandler) Session(c *gin.Context) {
	identity, err := a.sessions.identity(c)
	if err != nil {
		abortWithError(c, err, http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "payload": identity})
}

// Google redirects to the provider consent screen. State and nonce travel in
// a short-lived cookie.
func (a *AuthHandler) Google(c *gin.Context) {
	google := a.services.Google
	if google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
		return
	}
	state, err := randString(16)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	nonce, err := randString(16)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.StateCookieName, state+"."+nonce, stateMaxAge, "/auth", a.domain, a.secure, true)
	c.Redirect(http.StatusFound, google.AuthConfig.AuthCodeURL(state, oidc.Nonce(hashNonce(nonce))))
}

func (a *AuthHandler) Callback(c *gin.Context) {
	google := a.services.Google
	if google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
		return
	}
	stored, _ := c.Cookie(a.StateCookieName)
	c.SetCookie(a.StateCookieName, "", -1, "/auth", a.domain, a.secure, true)
	state, nonce, ok := strings.Cut(stored, ".")
	if !ok || state == "" || c.Query("state") != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no current state found"})
		return
	}

	ctx := c.Request.Context()
	token, err := google.AuthConfig.Exchange(ctx, c.Query("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error getting access token: " + err.Error()})
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No ID token found in request to /callback"})
		return
	}
	idToken, err := google.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Error verifying ID token: " + err.Error()})
		return
	}
	if idToken.Nonce != hashNonce(nonce) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ID token nonce mismatch"})
		return
	}

	session, err := a.services.Sessions.SignInWithIDToken(ctx, googleProvider, rawIDToken, nonce)
	if err != nil {
		abortWithError(c, err, http.StatusUnauthorized)
		return
	}
	a.setSession(c, session)
	c.Redirect(http.StatusFound, dashboardPath)
}
