package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultUserInfoURL is Google's OpenID Connect userinfo endpoint.
const DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleUser is the portion of the userinfo response we care about.
//
// Docs: https://developers.google.com/identity/openid-connect/openid-connect#obtainuserinfo
type GoogleUser struct {
	Sub     string `json:"sub"`     // Google's stable account ID
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"` // profile picture URL
}

// Subject is the provider-qualified identifier stored on the user row.
// Prefixing with the provider keeps IDs from different providers apart.
func (u GoogleUser) Subject() string {
	return "google:" + u.Sub
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. The server redirects the user to Google's consent page with our ClientID
//     and the requested scopes.
//  2. Google redirects back to CallbackURL with a short-lived "code".
//  3. The server exchanges the code for an access token (server-to-server,
//     using the ClientSecret).
//  4. The server calls the userinfo endpoint with that token.
//
// The access token never reaches the browser; only our own JWT cookie does.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
//
// Credentials come from the Google Cloud console ("APIs & Services" →
// "Credentials" → "OAuth client ID"). callbackURL must match one of the
// authorized redirect URIs exactly, e.g. "http://localhost:8080/auth/google/callback".
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: DefaultUserInfoURL,
	}
}

// WithEndpoints points the provider at different token and userinfo URLs.
// Tests use it with an httptest server.
func (p *GoogleProvider) WithEndpoints(endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	p.config.Endpoint = endpoint
	p.userInfoURL = userInfoURL
	return p
}

// AuthURL returns the URL to redirect the user to for consent.
//
// The state is a random value we also store in a short-lived cookie; the
// callback rejects the request if the two differ (CSRF protection).
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the user's Google profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo: %w", err)
	}
	if user.Sub == "" {
		return nil, fmt.Errorf("auth: Google returned a user without a subject")
	}

	return &user, nil
}
