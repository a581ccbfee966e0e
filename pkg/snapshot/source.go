package snapshot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/CompassSecurity/custompatterns/pkg/httpclient"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"
	"github.com/google/go-github/v69/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com/"

// Alert is an open secret scanning alert with its locations.
type Alert struct {
	Number      int64
	SecretType  string
	DisplayName string
	Locations   []Location
}

// Location is where an alert's secret was found.
type Location struct {
	// Type is "commit" for locations in repository content.
	Type        string
	Path        string
	Commit      string
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
}

// AlertSource lists the open alerts of one secret type. An empty secretType
// lists all alerts.
type AlertSource interface {
	Alerts(ctx context.Context, secretType string) ([]Alert, error)
}

// NewGitHubClient returns a go-github client that waits out rate limits and
// retries failed requests.
func NewGitHubClient(token, baseURL string, opts httpclient.Options) (*github.Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	retrying, err := httpclient.New(opts)
	if err != nil {
		return nil, err
	}

	rateLimiter := github_ratelimit.New(&retryablehttp.RoundTripper{Client: retrying},
		github_primary_ratelimit.WithLimitDetectedCallback(func(ctx *github_primary_ratelimit.CallbackContext) {
			resetTime := ctx.ResetTime.Add(time.Duration(time.Second * 30))
			log.Info().Str("category", string(ctx.Category)).Time("reset", resetTime).Msg("Primary rate limit detected, will resume automatically")
			time.Sleep(time.Until(resetTime))
			log.Info().Str("category", string(ctx.Category)).Msg("Resuming")
		}),
		github_secondary_ratelimit.WithLimitDetectedCallback(func(ctx *github_secondary_ratelimit.CallbackContext) {
			resetTime := ctx.ResetTime.Add(time.Duration(time.Second * 30))
			log.Info().Time("reset", *ctx.ResetTime).Dur("totalSleep", *ctx.TotalSleepTime).Msg("Secondary rate limit detected, will resume automatically")
			time.Sleep(time.Until(resetTime))
			log.Info().Msg("Resuming")
		}),
	)

	client := github.NewClient(&http.Client{Transport: rateLimiter})
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != DefaultBaseURL {
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub URL %s: %w", baseURL, err)
		}
	}
	return client, nil
}

// GitHubSource reads alerts of one repository from the secret scanning API.
type GitHubSource struct {
	client *github.Client
	owner  string
	repo   string
}

func NewGitHubSource(client *github.Client, owner, repo string) *GitHubSource {
	return &GitHubSource{client: client, owner: owner, repo: repo}
}

func (s *GitHubSource) Alerts(ctx context.Context, secretType string) ([]Alert, error) {
	log.Info().Str("repository", s.owner+"/"+s.repo).Str("secretType", secretType).Msg("Getting secret scanning alerts")

	opts := &github.SecretScanningAlertListOptions{
		State:       "open",
		SecretType:  secretType,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var alerts []Alert
	for {
		page, resp, err := s.client.SecretScanning.ListAlertsForRepo(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list secret scanning alerts: %w", err)
		}

		for _, a := range page {
			alert := Alert{
				Number:      int64(a.GetNumber()),
				SecretType:  a.GetSecretType(),
				DisplayName: a.GetSecretTypeDisplayName(),
			}
			alert.Locations, err = s.locations(ctx, alert.Number)
			if err != nil {
				return nil, err
			}
			alerts = append(alerts, alert)
		}

		switch {
		case resp.NextPage != 0:
			opts.ListOptions.Page = resp.NextPage
		case resp.After != "":
			opts.ListCursorOptions.After = resp.After
		default:
			log.Debug().Int("alerts", len(alerts)).Msg("Fetched secret scanning alerts")
			return alerts, nil
		}
	}
}

func (s *GitHubSource) locations(ctx context.Context, number int64) ([]Location, error) {
	opts := &github.ListOptions{PerPage: 100}

	var locations []Location
	for {
		page, resp, err := s.client.SecretScanning.ListLocationsForAlert(ctx, s.owner, s.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list locations of alert %d: %w", number, err)
		}

		for _, l := range page {
			d := l.GetDetails()
			locations = append(locations, Location{
				Type:        l.GetType(),
				Path:        d.GetPath(),
				Commit:      d.GetCommitSHA(),
				StartLine:   d.GetStartline(),
				EndLine:     d.GetEndLine(),
				StartColumn: d.GetStartColumn(),
				EndColumn:   d.GetEndColumn(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return locations, nil
}
