/*
Package notes provides release notes generation for fwrelease.

Notes are built from the commits in a tag range. Merge commits created by
GitHub pull requests are expanded into one section per pull request, and the
remaining commits are grouped by their conventional-commit type.
*/
package notes

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/fwrelease/internal/git"
)

// NoChanges is the body used for an empty range
const NoChanges = "No changes."

// PullRequest is the part of a pull request shown in the notes
type PullRequest struct {
	Number   int
	Title    string
	Author   string
	Body     string
	Branch   string
	URL      string
	Labels   []string
	MergedAt time.Time
}

// PullRequestGetter looks up pull requests by number
type PullRequestGetter interface {
	PullRequest(ctx context.Context, number int) (*PullRequest, error)
}

// CommitSource lists the commits of a revision range
type CommitSource interface {
	Commits(from, to string) ([]git.Commit, error)
}

var mergePullRe = regexp.MustCompile(`^Merge pull request #(\d+)`)

// commitGroups orders the sections for plain commits
var commitGroups = []git.CommitGroup{
	{Title: "Breaking Changes", Regexp: `^\w+(\([^)]+\))?!:`},
	{Title: "Features", Regexp: `^feat(\([^)]+\))?:`},
	{Title: "Bug Fixes", Regexp: `^(fix|hotfix)(\([^)]+\))?:`},
	{Title: "Performance", Regexp: `^perf(\([^)]+\))?:`},
	{Title: "Refactoring", Regexp: `^refactor(\([^)]+\))?:`},
	{Title: "Documentation", Regexp: `^docs(\([^)]+\))?:`},
	{Title: "Tests", Regexp: `^test(\([^)]+\))?:`},
	{Title: "CI/CD", Regexp: `^(ci|build)(\([^)]+\))?:`},
	{Title: "Maintenance", Regexp: `^(chore|style)(\([^)]+\))?:`},
}

// excludedCommits are merge commits that carry no change of their own
var excludedCommits = []string{
	`^Merge branch `,
	`^Merge remote-tracking branch `,
	`^Merge tag `,
}

// Generator generates release notes
type Generator struct {
	commits CommitSource
	pulls   PullRequestGetter
}

// New creates a notes generator. pulls may be nil, in which case merge
// commits are listed like any other commit.
func New(commits CommitSource, pulls PullRequestGetter) *Generator {
	return &Generator{commits: commits, pulls: pulls}
}

// ParseRange splits a "from..to" range
func ParseRange(rng string) (string, string, error) {
	from, to, ok := strings.Cut(rng, "..")
	if !ok || from == "" || to == "" {
		return "", "", fmt.Errorf("invalid revision range %q", rng)
	}
	return from, to, nil
}

// Generate renders markdown notes for a "from..to" range
func (g *Generator) Generate(ctx context.Context, rng string) (string, error) {
	from, to, err := ParseRange(rng)
	if err != nil {
		return "", err
	}

	commits, err := g.commits.Commits(from, to)
	if err != nil {
		return "", fmt.Errorf("failed to get commits for %s: %w", rng, err)
	}
	log.Debug("Collected commits", "range", rng, "count", len(commits))

	var pulls []*PullRequest
	var rest []git.Commit
	for _, c := range commits {
		pr, err := g.pullRequest(ctx, c)
		if err != nil {
			return "", err
		}
		if pr != nil {
			pulls = append(pulls, pr)
			continue
		}
		rest = append(rest, c)
	}

	rest = git.FilterCommits(rest, excludedCommits)
	if len(pulls) == 0 && len(rest) == 0 {
		return NoChanges, nil
	}

	return render(from, pulls, git.GroupCommits(rest, commitGroups, "Other Changes")), nil
}

// pullRequest returns the pull request merged by c, or nil if c is not a
// pull request merge
func (g *Generator) pullRequest(ctx context.Context, c git.Commit) (*PullRequest, error) {
	if g.pulls == nil {
		return nil, nil
	}

	m := mergePullRe.FindStringSubmatch(c.Subject)
	if m == nil {
		return nil, nil
	}

	number, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, nil
	}

	log.Debug("Fetching pull request", "number", number)
	pr, err := g.pulls.PullRequest(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request #%d: %w", number, err)
	}
	return pr, nil
}

func render(from string, pulls []*PullRequest, groups []git.GroupedCommits) string {
	var buf bytes.Buffer

	if len(pulls) > 0 {
		buf.WriteString(fmt.Sprintf("# Pull Requests Since %s\n\n", from))

		for _, pr := range pulls {
			buf.WriteString(fmt.Sprintf("### #%d: %s\n\n", pr.Number, pr.Title))
			buf.WriteString("|||\n|---:|:---|\n")
			buf.WriteString(fmt.Sprintf("|**Author**|%s|\n", pr.Author))
			if !pr.MergedAt.IsZero() {
				buf.WriteString(fmt.Sprintf("|**Merged**|%s|\n", pr.MergedAt.Format("2006-01-02")))
			}
			if pr.Branch != "" {
				buf.WriteString(fmt.Sprintf("|**Branch**|%s|\n", pr.Branch))
			}
			if pr.URL != "" {
				buf.WriteString(fmt.Sprintf("|**Pull**|%s|\n", pr.URL))
			}
			if len(pr.Labels) > 0 {
				buf.WriteString(fmt.Sprintf("|**Labels**|%s|\n", strings.Join(pr.Labels, ", ")))
			}
			buf.WriteString("\n")

			if body := strings.TrimSpace(pr.Body); body != "" {
				buf.WriteString("**Notes:**\n")
				buf.WriteString(body)
				buf.WriteString("\n\n")
			}
			buf.WriteString("-------\n\n")
		}
	}

	if len(groups) > 0 {
		buf.WriteString(fmt.Sprintf("# Commits Since %s\n\n", from))

		for _, group := range groups {
			buf.WriteString(fmt.Sprintf("### %s\n\n", group.Title))
			for _, c := range group.Commits {
				buf.WriteString(fmt.Sprintf("* %s (%s)\n", cleanSubject(c.Subject), shortHash(c.Hash)))
			}
			buf.WriteString("\n")
		}
	}

	return strings.TrimRight(buf.String(), "\n") + "\n"
}

var conventionalRe = regexp.MustCompile(`^\w+(\([^)]+\))?!?:\s*`)

func cleanSubject(subject string) string {
	subject = conventionalRe.ReplaceAllString(subject, "")
	r, size := utf8.DecodeRuneInString(subject)
	if size == 0 || r == utf8.RuneError {
		return subject
	}
	return string(unicode.ToUpper(r)) + subject[size:]
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
