package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleConfig holds environment configuration for the Google provider.
type GoogleConfig struct {
	ClientID     string        `env:"GOOGLE_CLIENT_ID,required"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET,required"`
	RedirectURL  string        `env:"GOOGLE_REDIRECT_URL,required"`
	Scopes       []string      `env:"GOOGLE_SCOPES" envSeparator:"," envDefault:"https://www.googleapis.com/auth/userinfo.email,https://www.googleapis.com/auth/userinfo.profile"`
	StateTTL     time.Duration `env:"GOOGLE_STATE_TTL" envDefault:"10m"`
}

type googleClient struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewGoogleClient creates a ProviderClient for Google.
func NewGoogleClient(cfg GoogleConfig) ProviderClient {
	return &googleClient{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *googleClient) AuthURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// Exchange trades the code for an access token and normalizes the Google
// userinfo profile.
func (c *googleClient) Exchange(ctx context.Context, code string) (ProviderProfile, error) {
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("google token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return ProviderProfile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("fetch google userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ProviderProfile{}, fmt.Errorf("google api returned status %d", resp.StatusCode)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return ProviderProfile{}, err
	}
	if user.Email == "" {
		return ProviderProfile{}, fmt.Errorf("google account has no email")
	}

	return ProviderProfile{
		Provider:          ProviderGoogle,
		ProviderAccountID: user.ID,
		Email:             user.Email,
		DisplayName:       user.Name,
	}, nil
}

var _ ProviderClient = (*googleClient)(nil)
