package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

const (
	// AuthURL is the Strava authorization endpoint.
	AuthURL = "https://www.strava.com/oauth/authorize"
	// TokenURL is the Strava token exchange / refresh endpoint.
	TokenURL = "https://www.strava.com/oauth/token"

	// ScopeActivityReadAll allows reading all activities, private ones included.
	ScopeActivityReadAll = "activity:read_all"
)

// ErrUnauthorized is returned on 401/403 responses and on failed token
// refreshes (expired / revoked credentials). The athlete has to go through
// the authorization flow again.
var ErrUnauthorized = errors.New("strava: unauthorized")

var ErrStateMismatch = errors.New("strava: redirect state parameter doesn't match")

// Authenticator wraps the Strava OAuth2 flow: building the authorize URL,
// exchanging the redirect code for a token, and refreshing expired tokens.
type Authenticator struct {
	config *oauth2.Config
}

type AuthenticatorOption func(*Authenticator)

func WithRedirectURL(url string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.config.RedirectURL = url
	}
}

func WithScopes(scopes ...string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.config.Scopes = scopes
	}
}

func WithClientID(id string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.config.ClientID = id
	}
}

func WithClientSecret(secret string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.config.ClientSecret = secret
	}
}

// WithEndpoint overrides the Strava OAuth endpoints, used in tests.
func WithEndpoint(authURL, tokenURL string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.config.Endpoint = oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}
}

func NewAuthenticator(opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		config: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthURL,
				TokenURL: TokenURL,
				// strava wants client id/secret in the POST body
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AuthCodeURL returns the URL the athlete's browser is sent to for
// authorization. approval_prompt=force makes Strava always show the consent
// screen, the behaviour the original web flow relies on.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// Token reads the authorization code from the redirect callback request and
// exchanges it for a token.
func (a *Authenticator) Token(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	if e := r.FormValue("error"); e != "" {
		return nil, fmt.Errorf("strava: authorization denied: %s", e)
	}
	if actualState := r.FormValue("state"); actualState != state {
		return nil, ErrStateMismatch
	}
	code := r.FormValue("code")
	if code == "" {
		return nil, errors.New("strava: redirect request has no code")
	}

	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// Refresh mints a new access token from a refresh token. An invalid or
// revoked refresh token yields ErrUnauthorized - terminal for the caller,
// the athlete must re-authenticate.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			switch retrieveErr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return nil, fmt.Errorf("%w: refresh rejected: %s", ErrUnauthorized, retrieveErr.Error())
			}
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return tok, nil
}

// AthleteFromToken extracts the athlete summary Strava attaches to the code
// exchange response. Returns zero values when absent (e.g. on refresh).
func AthleteFromToken(tok *oauth2.Token) (id int64, name string) {
	raw, ok := tok.Extra("athlete").(map[string]interface{})
	if !ok {
		return 0, ""
	}
	if idVal, ok := raw["id"].(float64); ok {
		id = int64(idVal)
	}
	firstname, _ := raw["firstname"].(string)
	lastname, _ := raw["lastname"].(string)
	switch {
	case firstname != "" && lastname != "":
		name = firstname + " " + lastname
	case firstname != "":
		name = firstname
	default:
		name, _ = raw["username"].(string)
	}
	return id, name
}
