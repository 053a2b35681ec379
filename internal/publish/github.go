package publish

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/oarkflow/fwrelease/internal/notes"
)

// Credentials authenticate against GitHub. A token takes precedence over
// username and password.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Secret returns the token, or the password when no token is set
func (c Credentials) Secret() string {
	if c.Token != "" {
		return c.Token
	}
	return c.Password
}

func (c Credentials) httpClient(ctx context.Context) *http.Client {
	if c.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: c.Token},
		)
		return oauth2.NewClient(ctx, ts)
	}
	tp := github.BasicAuthTransport{
		Username: c.Username,
		Password: c.Password,
	}
	return tp.Client()
}

// GitHubClient talks to one GitHub repository
type GitHubClient struct {
	github *github.Client
	owner  string
	repo   string
}

// NewGitHubClient creates a client for owner/repo
func NewGitHubClient(ctx context.Context, creds Credentials, owner, repo string) Hosting {
	return newGitHubClient(creds.httpClient(ctx), owner, repo)
}

func newGitHubClient(httpClient *http.Client, owner, repo string) *GitHubClient {
	return &GitHubClient{
		github: github.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}
}

// Authenticate fetches the authenticated user and returns its login
func (c *GitHubClient) Authenticate(ctx context.Context) (string, error) {
	user, _, err := c.github.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to log into GitHub: %w", err)
	}
	return user.GetLogin(), nil
}

// PullRequest fetches a pull request of the repository
func (c *GitHubClient) PullRequest(ctx context.Context, number int) (*notes.PullRequest, error) {
	pr, _, err := c.github.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, err
	}

	var labels []string
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	return &notes.PullRequest{
		Number:   pr.GetNumber(),
		Title:    pr.GetTitle(),
		Author:   pr.GetUser().GetLogin(),
		Body:     pr.GetBody(),
		Branch:   pr.GetHead().GetRef(),
		URL:      pr.GetHTMLURL(),
		Labels:   labels,
		MergedAt: pr.GetMergedAt().Time,
	}, nil
}

// CreateRelease creates a published release for an existing tag
func (c *GitHubClient) CreateRelease(ctx context.Context, tag, name, body string) (int64, error) {
	release, _, err := c.github.Repositories.CreateRelease(ctx, c.owner, c.repo, &github.RepositoryRelease{
		TagName: github.String(tag),
		Name:    github.String(name),
		Body:    github.String(body),
		Draft:   github.Bool(false),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create release %s: %w", tag, err)
	}

	log.Debug("Created release", "id", release.GetID(), "url", release.GetHTMLURL())
	return release.GetID(), nil
}

// UploadAsset uploads size bytes from r as the release asset name
func (c *GitHubClient) UploadAsset(ctx context.Context, releaseID int64, name string, r io.Reader, size int64) error {
	u := fmt.Sprintf("repos/%s/%s/releases/%d/assets?%s", c.owner, c.repo, releaseID, url.Values{"name": {name}}.Encode())

	mediaType := mime.TypeByExtension(filepath.Ext(name))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	req, err := c.github.NewUploadRequest(u, r, size, mediaType)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if _, err := c.github.Do(ctx, req, new(github.ReleaseAsset)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}
