/*
Package git provides access to the firmware project repository for fwrelease.
*/
package git

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ErrDirty is returned when tracked files have uncommitted changes
var ErrDirty = errors.New("git repository is dirty")

// RemoteName is the remote tags are pushed to
const RemoteName = "origin"

// Repository wraps a local git repository
type Repository struct {
	repo *gogit.Repository
	path string
}

// Open opens the repository containing path
func Open(path string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository %s: %w", path, err)
	}
	return &Repository{repo: repo, path: path}, nil
}

// IsDirty reports whether tracked files differ from HEAD. Untracked files
// are ignored.
func (r *Repository) IsDirty() (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree status: %w", err)
	}

	for path, s := range status {
		if s.Worktree == gogit.Untracked && s.Staging == gogit.Untracked {
			continue
		}
		if s.Worktree == gogit.Unmodified && s.Staging == gogit.Unmodified {
			continue
		}
		log.Debug("Modified file", "path", path)
		return true, nil
	}
	return false, nil
}

// EnsureClean fails with ErrDirty if tracked files have changes
func (r *Repository) EnsureClean() error {
	dirty, err := r.IsDirty()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w: cannot create tag", ErrDirty)
	}
	return nil
}

// OriginURL returns the first URL of the origin remote
func (r *Repository) OriginURL() (string, error) {
	remote, err := r.repo.Remote(RemoteName)
	if err != nil {
		return "", fmt.Errorf("failed to get remote %s: %w", RemoteName, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", RemoteName)
	}
	return urls[0], nil
}

// ProjectName extracts the repository name that follows owner in a remote
// URL. Both SSH and HTTPS forms are accepted, with or without ".git".
func ProjectName(url, owner string) (string, error) {
	if !strings.HasSuffix(url, ".git") {
		url += ".git"
	}

	re := regexp.MustCompile(regexp.QuoteMeta(owner) + `/(?P<name>.*?)(?P<ext>\.git)`)
	m := re.FindStringSubmatch(url)
	if m == nil || m[re.SubexpIndex("name")] == "" {
		return "", fmt.Errorf("failed to find %s project in remote URL %s", owner, url)
	}
	return m[re.SubexpIndex("name")], nil
}

// CreateTag creates an annotated tag on HEAD
func (r *Repository) CreateTag(name, message string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}

	tagger, err := r.signature()
	if err != nil {
		return err
	}

	_, err = r.repo.CreateTag(name, head.Hash(), &gogit.CreateTagOptions{
		Tagger:  tagger,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}

	log.Debug("Created tag", "tag", name, "commit", head.Hash().String()[:8])
	return nil
}

// PushTag pushes a tag to origin
func (r *Repository) PushTag(ctx context.Context, name string, auth transport.AuthMethod) error {
	ref := plumbing.NewTagReferenceName(name)
	err := r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: RemoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push tag %s: %w", name, err)
	}
	return nil
}

// HTTPAuth returns basic auth for pushing to an HTTP(S) remote, or nil for
// any other transport so SSH falls back to the agent.
func HTTPAuth(url, username, password string) transport.AuthMethod {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil
	}
	if password == "" {
		return nil
	}
	if username == "" {
		username = "x-access-token"
	}
	return &http.BasicAuth{Username: username, Password: password}
}

// Tags returns the tag names starting with prefix, sorted
func (r *Repository) Tags(prefix string) ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer iter.Close()

	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if strings.HasPrefix(name, prefix) {
			tags = append(tags, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(tags)
	return tags, nil
}

// Resolve resolves a revision to a commit hash, peeling annotated tags
func (r *Repository) Resolve(rev string) (plumbing.Hash, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve %s: %w", rev, err)
	}

	if tag, err := r.repo.TagObject(*hash); err == nil {
		commit, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to peel tag %s: %w", rev, err)
		}
		return commit.Hash, nil
	}
	return *hash, nil
}

// Commits returns the commits reachable from to but not from from, newest
// first. An empty from returns the whole history of to.
func (r *Repository) Commits(from, to string) ([]Commit, error) {
	toHash, err := r.Resolve(to)
	if err != nil {
		return nil, err
	}

	excluded := make(map[plumbing.Hash]bool)
	if from != "" {
		fromHash, err := r.Resolve(from)
		if err != nil {
			return nil, err
		}
		start, err := r.repo.CommitObject(fromHash)
		if err != nil {
			return nil, err
		}
		err = object.NewCommitPreorderIter(start, nil, nil).ForEach(func(c *object.Commit) error {
			excluded[c.Hash] = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", from, err)
		}
	}

	end, err := r.repo.CommitObject(toHash)
	if err != nil {
		return nil, err
	}

	var commits []Commit
	err = object.NewCommitPreorderIter(end, excluded, nil).ForEach(func(c *object.Commit) error {
		if excluded[c.Hash] {
			return nil
		}
		commits = append(commits, newCommit(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", to, err)
	}

	return commits, nil
}

// signature returns the tagger configured for the repository
func (r *Repository) signature() (*object.Signature, error) {
	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return nil, fmt.Errorf("failed to read git config: %w", err)
	}
	if cfg.User.Name == "" {
		return nil, fmt.Errorf("git user.name is not configured")
	}
	return &object.Signature{
		Name:  cfg.User.Name,
		Email: cfg.User.Email,
		When:  time.Now(),
	}, nil
}

// Commit represents a git commit
type Commit struct {
	Hash        string
	Subject     string
	Body        string
	AuthorName  string
	AuthorEmail string
	Date        time.Time
	Parents     int
}

func newCommit(c *object.Commit) Commit {
	subject, body, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return Commit{
		Hash:        c.Hash.String(),
		Subject:     strings.TrimSpace(subject),
		Body:        strings.TrimSpace(body),
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		Date:        c.Author.When,
		Parents:     c.NumParents(),
	}
}

// FilterCommits drops commits whose subject matches any exclude pattern
func FilterCommits(commits []Commit, exclude []string) []Commit {
	var res []*regexp.Regexp
	for _, pattern := range exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			log.Warn("Ignoring invalid commit filter", "pattern", pattern, "error", err)
			continue
		}
		res = append(res, re)
	}

	var result []Commit
	for _, c := range commits {
		excluded := false
		for _, re := range res {
			if re.MatchString(c.Subject) {
				excluded = true
				break
			}
		}
		if !excluded {
			result = append(result, c)
		}
	}
	return result
}

// CommitGroup defines a commit group pattern
type CommitGroup struct {
	Title  string
	Regexp string
}

// GroupedCommits represents commits in a group
type GroupedCommits struct {
	Title   string
	Commits []Commit
}

// GroupCommits assigns each commit to the first group whose pattern matches
// its subject. Unmatched commits end up in a trailing group titled other.
func GroupCommits(commits []Commit, groups []CommitGroup, other string) []GroupedCommits {
	var result []GroupedCommits
	used := make(map[string]bool)

	for _, group := range groups {
		re, err := regexp.Compile(group.Regexp)
		if err != nil {
			continue
		}

		gc := GroupedCommits{Title: group.Title}
		for _, c := range commits {
			if used[c.Hash] {
				continue
			}
			if re.MatchString(c.Subject) {
				gc.Commits = append(gc.Commits, c)
				used[c.Hash] = true
			}
		}

		if len(gc.Commits) > 0 {
			result = append(result, gc)
		}
	}

	var ungrouped []Commit
	for _, c := range commits {
		if !used[c.Hash] {
			ungrouped = append(ungrouped, c)
		}
	}
	if len(ungrouped) > 0 {
		result = append(result, GroupedCommits{Title: other, Commits: ungrouped})
	}

	return result
}
