/*
Package publish provides release publishing for fwrelease.

Publishing tags the firmware repository, pushes the tag, creates a GitHub
release with generated notes and uploads the release attachments. Steps run
in order and nothing is rolled back: a pushed tag stays if a later step fails.
*/
package publish

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/spf13/afero"

	"github.com/oarkflow/fwrelease/internal/git"
	"github.com/oarkflow/fwrelease/internal/notes"
	"github.com/oarkflow/fwrelease/internal/prompt"
	"github.com/oarkflow/fwrelease/internal/tmpl"
)

// Repository is the local repository being released
type Repository interface {
	EnsureClean() error
	OriginURL() (string, error)
	CreateTag(name, message string) error
	PushTag(ctx context.Context, name string, auth transport.AuthMethod) error
	notes.CommitSource
}

// Hosting is the remote service holding releases
type Hosting interface {
	notes.PullRequestGetter
	Authenticate(ctx context.Context) (string, error)
	CreateRelease(ctx context.Context, tag, name, body string) (int64, error)
	UploadAsset(ctx context.Context, releaseID int64, name string, r io.Reader, size int64) error
}

// HostingFactory creates the Hosting client for owner/repo
type HostingFactory func(ctx context.Context, creds Credentials, owner, repo string) Hosting

// Options configure a Publisher
type Options struct {
	// Owner is the GitHub account owning the project
	Owner string

	// Credentials given up front. Missing values are prompted for.
	Credentials Credentials

	Prompter prompt.Prompter

	// NewHosting defaults to NewGitHubClient
	NewHosting HostingFactory

	// Fs holds the attachments, defaults to the OS filesystem
	Fs afero.Fs
}

// Publisher publishes releases
type Publisher struct {
	repo Repository
	opts Options
}

// New creates a new publisher
func New(repo Repository, opts Options) *Publisher {
	if opts.NewHosting == nil {
		opts.NewHosting = NewGitHubClient
	}
	if opts.Prompter == nil {
		opts.Prompter = prompt.Disabled{}
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Publisher{repo: repo, opts: opts}
}

// Publish tags the repository and creates the release. The template context
// must carry Release, Version and Prev.
func (p *Publisher) Publish(ctx context.Context, tmplCtx *tmpl.Context, attachments []string) error {
	if err := p.repo.EnsureClean(); err != nil {
		return err
	}

	url, err := p.repo.OriginURL()
	if err != nil {
		return err
	}
	project, err := git.ProjectName(url, p.opts.Owner)
	if err != nil {
		return err
	}

	tag, err := tmplCtx.Apply(tmpl.TagName)
	if err != nil {
		return err
	}
	msg, err := tmplCtx.Apply(tmpl.TagMessage)
	if err != nil {
		return err
	}
	tagRange, err := tmplCtx.Apply(tmpl.TagRange)
	if err != nil {
		return err
	}

	creds, err := p.credentials()
	if err != nil {
		return err
	}

	log.Info("Creating and pushing tag", "tag", tag)
	if err := p.repo.CreateTag(tag, msg); err != nil {
		return err
	}
	if err := p.repo.PushTag(ctx, tag, git.HTTPAuth(url, creds.Username, creds.Secret())); err != nil {
		return err
	}

	log.Info("Logging into GitHub")
	hosting := p.opts.NewHosting(ctx, creds, p.opts.Owner, project)
	login, err := hosting.Authenticate(ctx)
	if err != nil {
		return err
	}
	log.Debug("Authenticated", "user", login)

	log.Info("Generating release notes", "range", tagRange)
	body, err := notes.New(p.repo, hosting).Generate(ctx, tagRange)
	if err != nil {
		return err
	}

	log.Info("Creating release", "repo", p.opts.Owner+"/"+project, "tag", tag)
	releaseID, err := hosting.CreateRelease(ctx, tag, msg, body)
	if err != nil {
		return err
	}

	log.Info("Uploading attachments", "count", len(attachments))
	for _, a := range attachments {
		if err := p.upload(ctx, hosting, releaseID, a); err != nil {
			return err
		}
	}

	log.Info("Published release", "tag", tag)
	return nil
}

func (p *Publisher) upload(ctx context.Context, hosting Hosting, releaseID int64, path string) error {
	f, err := p.opts.Fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to open attachment: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("attachment %s is a directory", path)
	}

	name := filepath.Base(path)
	log.Debug("Uploading asset", "name", name, "size", info.Size())
	return hosting.UploadAsset(ctx, releaseID, name, f, info.Size())
}

// credentials fills in missing credentials through the prompter
func (p *Publisher) credentials() (Credentials, error) {
	creds := p.opts.Credentials
	if creds.Token != "" {
		return creds, nil
	}

	if creds.Username == "" {
		user, err := p.opts.Prompter.Input("Username for github")
		if err != nil {
			return creds, fmt.Errorf("failed to read GitHub username: %w", err)
		}
		creds.Username = user
	}

	if creds.Password == "" {
		password, err := p.opts.Prompter.Password("Password for github")
		if err != nil {
			return creds, fmt.Errorf("failed to read GitHub password: %w", err)
		}
		creds.Password = password
	}

	return creds, nil
}
