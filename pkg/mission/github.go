package mission

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v69/github"
)

// Issue is the subset of a GitHub issue or pull request a mission prompt
// needs for grounding.
type Issue struct {
	Title string
	Body  string
}

// IssueContextFetcher resolves a GitHub issue or PR by number. Pull requests
// are addressable through the same numbering as issues on GitHub's API, so
// one fetcher covers both.
type IssueContextFetcher interface {
	Fetch(ctx context.Context, owner, repo string, number int) (Issue, error)
}

// GitHubFetcher is an IssueContextFetcher backed by go-github.
type GitHubFetcher struct {
	client *github.Client
}

// NewGitHubFetcher builds a fetcher. token may be empty for unauthenticated,
// rate-limited access to public repos.
func NewGitHubFetcher(token string) *GitHubFetcher {
	client := github.NewClient(http.DefaultClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubFetcher{client: client}
}

func (f *GitHubFetcher) Fetch(ctx context.Context, owner, repo string, number int) (Issue, error) {
	issue, _, err := f.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return Issue{}, fmt.Errorf("github: get issue %s/%s#%d: %w", owner, repo, number, err)
	}
	var issueOut Issue
	if issue.Title != nil {
		issueOut.Title = *issue.Title
	}
	if issue.Body != nil {
		issueOut.Body = *issue.Body
	}
	return issueOut, nil
}
