package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func providerFor(t *testing.T, handler http.HandlerFunc) *TokenProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewTokenProvider("client-id", "client-secret", "refresh-token")
	p.config.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token"}
	return p
}

func TestAccessTokenExchangesRefreshGrant(t *testing.T) {
	p := providerFor(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "refresh-token" {
			t.Errorf("refresh_token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"short-lived","token_type":"Bearer","expires_in":3600}`))
	})

	token, err := p.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if token != "short-lived" {
		t.Fatalf("token = %q", token)
	}
}

func TestAccessTokenWrapsExchangeFailure(t *testing.T) {
	p := providerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := p.AccessToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}
