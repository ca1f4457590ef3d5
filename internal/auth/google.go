package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultUserInfoURL is Google's OpenID userinfo endpoint.
const DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProfile is the portion of the userinfo response we care about.
type GoogleProfile struct {
	ID            string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleConfig configures GoogleProvider. Endpoint and UserInfoURL default
// to Google's production endpoints; tests point them at httptest servers.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	Timeout      time.Duration
}

// GoogleProvider wraps golang.org/x/oauth2 for the Authorization Code flow.
//
// The code-for-token exchange happens server-to-server using the client
// secret, so the Google access token never reaches the browser.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleProvider requests the openid, email and profile scopes.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = DefaultUserInfoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfo,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// AuthURL returns the consent URL carrying state.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging oauth code: %w", err)
	}
	if !tok.Valid() {
		return nil, fmt.Errorf("auth: token endpoint returned an unusable token")
	}
	return tok, nil
}

// FetchProfile calls the userinfo endpoint with the access token.
func (p *GoogleProvider) FetchProfile(ctx context.Context, tok *oauth2.Token) (*GoogleProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	client := p.config.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: userinfo returned status %d", resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("auth: decoding userinfo response: %w", err)
	}
	if profile.ID == "" || profile.Email == "" {
		return nil, fmt.Errorf("auth: userinfo response is missing id or email")
	}
	return &profile, nil
}
