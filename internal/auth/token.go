// Package auth exchanges the long-lived Google refresh credential for
// short-lived access tokens.
package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// AuthError means the credential exchange produced no usable token. Callers
// treat it as fatal for the current poll cycle only, not for the process.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TokenProvider exchanges a refresh token for an access token on every call.
// No caching: tokens are cheap and poll intervals are minutes apart.
type TokenProvider struct {
	config       *oauth2.Config
	refreshToken string
}

func NewTokenProvider(clientID, clientSecret, refreshToken string) *TokenProvider {
	return &TokenProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: googleTokenURL,
			},
		},
		refreshToken: refreshToken,
	}
}

// AccessToken performs the refresh-grant exchange and returns the short-lived
// access token.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken})
	token, err := source.Token()
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if token.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("response contained no access token")}
	}
	return token.AccessToken, nil
}
