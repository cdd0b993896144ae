package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/addynoven/portfolio-web/internal/log"
	"github.com/addynoven/portfolio-web/internal/xerrors"
)

const (
	defaultGitHubAPI       = "https://api.github.com"
	defaultRepoLimit       = 30
	defaultLangConcurrency = 8
	maxErrorBody           = 512
)

const contributionsQuery = `query($username: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $username) {
    contributionsCollection(from: $from, to: $to) {
      totalCommitContributions
      totalPullRequestContributions
      totalIssueContributions
      totalRepositoryContributions
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            contributionCount
            date
          }
        }
      }
    }
    repositories(first: 100, ownerAffiliations: OWNER, orderBy: {field: STARGAZERS, direction: DESC}) {
      totalCount
      nodes {
        name
        stargazerCount
        primaryLanguage {
          name
        }
      }
    }
    followers {
      totalCount
    }
  }
}`

type GitHubOptions struct {
	Token    string
	Username string

	HTTPClient *http.Client
	Logger     log.Logger

	// APIBaseURL serves both /graphql and the REST endpoints.
	APIBaseURL string

	// RepoLimit caps how many repositories have their languages fetched.
	RepoLimit int

	// Concurrency bounds parallel language requests.
	Concurrency int

	Now func() time.Time

	// Observe is called after each upstream call with its latency and error.
	Observe func(provider string, elapsed time.Duration, err error)
}

// GitHubClient assembles GitHubStats from the GraphQL and REST APIs.
type GitHubClient struct {
	opts GitHubOptions
}

func NewGitHubClient(opts GitHubOptions) *GitHubClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = defaultGitHubAPI
	}
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")
	if opts.RepoLimit <= 0 {
		opts.RepoLimit = defaultRepoLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultLangConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &GitHubClient{opts: opts}
}

func (c *GitHubClient) Configured() bool {
	return c != nil && c.opts.Token != ""
}

type graphqlResponse struct {
	Data struct {
		User *struct {
			ContributionsCollection struct {
				TotalCommitContributions      int `json:"totalCommitContributions"`
				TotalPullRequestContributions int `json:"totalPullRequestContributions"`
				TotalIssueContributions       int `json:"totalIssueContributions"`
				TotalRepositoryContributions  int `json:"totalRepositoryContributions"`
				ContributionCalendar          struct {
					TotalContributions int `json:"totalContributions"`
					Weeks              []struct {
						ContributionDays []ContributionDay `json:"contributionDays"`
					} `json:"weeks"`
				} `json:"contributionCalendar"`
			} `json:"contributionsCollection"`
			Repositories struct {
				TotalCount int `json:"totalCount"`
				Nodes      []struct {
					Name            string `json:"name"`
					StargazerCount  int    `json:"stargazerCount"`
					PrimaryLanguage *struct {
						Name string `json:"name"`
					} `json:"primaryLanguage"`
				} `json:"nodes"`
			} `json:"repositories"`
			Followers struct {
				TotalCount int `json:"totalCount"`
			} `json:"followers"`
		} `json:"user"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Fetch returns live stats for the current calendar year.
func (c *GitHubClient) Fetch(ctx context.Context) (GitHubStats, error) {
	if !c.Configured() {
		return GitHubStats{}, ErrNotConfigured
	}

	start := time.Now()
	st, err := c.fetch(ctx)
	if c.opts.Observe != nil {
		c.opts.Observe(ProviderGitHub, time.Since(start), err)
	}
	return st, err
}

func (c *GitHubClient) fetch(ctx context.Context) (GitHubStats, error) {
	now := c.opts.Now().UTC()
	year := now.Year()

	gql, err := c.contributions(ctx, year)
	if err != nil {
		return GitHubStats{}, err
	}
	user := gql.Data.User
	coll := user.ContributionsCollection

	repos := user.Repositories.Nodes
	if len(repos) > c.opts.RepoLimit {
		repos = repos[:c.opts.RepoLimit]
	}
	names := make([]string, len(repos))
	for i, r := range repos {
		names[i] = r.Name
	}
	breakdown := Breakdown(c.languageBytes(ctx, names))
	top := make([]string, len(breakdown))
	for i, l := range breakdown {
		top[i] = l.Name
	}

	stars := 0
	for _, r := range user.Repositories.Nodes {
		stars += r.StargazerCount
	}

	var days []ContributionDay
	for _, w := range coll.ContributionCalendar.Weeks {
		days = append(days, w.ContributionDays...)
	}

	return GitHubStats{
		TotalContributions: coll.ContributionCalendar.TotalContributions,
		TotalCommits:       coll.TotalCommitContributions,
		TotalPRs:           coll.TotalPullRequestContributions,
		TotalIssues:        coll.TotalIssueContributions,
		TotalRepos:         user.Repositories.TotalCount,
		TotalStars:         stars,
		Followers:          user.Followers.TotalCount,
		CurrentStreak:      CurrentStreak(days, now),
		Year:               year,
		TopLanguages:       top,
		LanguageBreakdown:  breakdown,
	}, nil
}

func (c *GitHubClient) contributions(ctx context.Context, year int) (*graphqlResponse, error) {
	body, err := json.Marshal(map[string]any{
		"query": contributionsQuery,
		"variables": map[string]string{
			"username": c.opts.Username,
			"from":     fmt.Sprintf("%d-01-01T00:00:00Z", year),
			"to":       fmt.Sprintf("%d-12-31T23:59:59Z", year),
		},
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "encode github graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.APIBaseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.Wrap(err, "build github graphql request")
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(err, "github graphql request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, xerrors.Newf("github graphql: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, xerrors.Wrap(err, "decode github graphql response")
	}
	if len(out.Errors) > 0 {
		return nil, xerrors.Newf("github graphql: %s", out.Errors[0].Message)
	}
	if out.Data.User == nil {
		return nil, xerrors.Newf("github graphql: user %q not found", c.opts.Username)
	}
	return &out, nil
}

// languageBytes sums per-repo language bytes. Repositories whose request
// fails are skipped.
func (c *GitHubClient) languageBytes(ctx context.Context, repos []string) map[string]int64 {
	var (
		mu  sync.Mutex
		sum = make(map[string]int64)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, repo := range repos {
		g.Go(func() error {
			langs, err := c.repoLanguages(gctx, repo)
			if err != nil {
				c.opts.Logger.Debug(ctx, "skipping repo languages", "repo", repo, "err", err)
				return nil
			}
			mu.Lock()
			for name, b := range langs {
				sum[name] += b
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sum
}

func (c *GitHubClient) repoLanguages(ctx context.Context, repo string) (map[string]int64, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/languages", c.opts.APIBaseURL, url.PathEscape(c.opts.Username), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, xerrors.Wrap(err, "build github languages request")
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrapf(err, "github languages %s", repo)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Newf("github languages %s: status %d", repo, resp.StatusCode)
	}

	var langs map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&langs); err != nil {
		return nil, xerrors.Wrapf(err, "decode github languages %s", repo)
	}
	return langs, nil
}
