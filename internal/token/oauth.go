package token

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/larksync/larksync/internal"
)

// OAuthRefresher refreshes a credential through a standard OAuth2 token
// endpoint. Both providers speak the refresh_token grant: Feishu through its
// authen v2 oauth endpoint and Outlook through the Microsoft identity
// platform v2 endpoint.
type OAuthRefresher struct {
	Role   internal.ProviderRole
	Config *oauth2.Config
}

func (r *OAuthRefresher) Refresh(ctx context.Context, cred internal.Credential) (internal.Credential, error) {
	src := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if rejected(err) {
			return internal.Credential{}, internal.NewReauthRequired(r.Role, err)
		}
		return internal.Credential{}, &internal.NetworkError{Provider: r.Role, Err: err}
	}
	return internal.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}, nil
}

// rejected reports whether the token endpoint answered with a definitive
// refusal, as opposed to a transport failure worth retrying next tick.
func rejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	switch retrieveErr.Response.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}
