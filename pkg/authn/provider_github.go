package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubConfig holds environment configuration for the GitHub provider.
type GitHubConfig struct {
	ClientID     string        `env:"GITHUB_CLIENT_ID,required"`
	ClientSecret string        `env:"GITHUB_CLIENT_SECRET,required"`
	RedirectURL  string        `env:"GITHUB_REDIRECT_URL,required"`
	Scopes       []string      `env:"GITHUB_SCOPES" envSeparator:"," envDefault:"user:email"`
	StateTTL     time.Duration `env:"GITHUB_STATE_TTL" envDefault:"10m"`
}

type githubClient struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewGitHubClient creates a ProviderClient for GitHub.
func NewGitHubClient(cfg GitHubConfig) ProviderClient {
	return &githubClient{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     github.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *githubClient) AuthURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// Exchange trades the code for an access token and normalizes the GitHub
// profile. GitHub may omit the email on /user, so /user/emails is always
// consulted, preferring the primary verified address.
func (c *githubClient) Exchange(ctx context.Context, code string) (ProviderProfile, error) {
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("github token exchange: %w", err)
	}

	user, err := c.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("fetch github user: %w", err)
	}

	emails, err := c.fetchEmails(ctx, tok.AccessToken)
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("fetch github emails: %w", err)
	}

	var email string
	for _, e := range emails {
		if e.Primary && e.Verified {
			email = e.Email
			break
		}
	}
	if email == "" {
		for _, e := range emails {
			if e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return ProviderProfile{}, fmt.Errorf("github account has no verified email")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return ProviderProfile{
		Provider:          ProviderGitHub,
		ProviderAccountID: strconv.FormatInt(user.ID, 10),
		Email:             email,
		DisplayName:       name,
	}, nil
}

func (c *githubClient) fetchUser(ctx context.Context, accessToken string) (*ghUser, error) {
	var user ghUser
	if err := c.getJSON(ctx, "https://api.github.com/user", accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *githubClient) fetchEmails(ctx context.Context, accessToken string) ([]ghEmail, error) {
	var emails []ghEmail
	if err := c.getJSON(ctx, "https://api.github.com/user/emails", accessToken, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (c *githubClient) getJSON(ctx context.Context, url, accessToken string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

type ghUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

var _ ProviderClient = (*githubClient)(nil)
