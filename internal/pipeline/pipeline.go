/*
Package pipeline provides the release pipeline orchestration for fwrelease.
*/
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/fwrelease/internal/archive"
	"github.com/oarkflow/fwrelease/internal/artifact"
	"github.com/oarkflow/fwrelease/internal/checksum"
	"github.com/oarkflow/fwrelease/internal/config"
	"github.com/oarkflow/fwrelease/internal/git"
	"github.com/oarkflow/fwrelease/internal/prompt"
	"github.com/oarkflow/fwrelease/internal/publish"
	"github.com/oarkflow/fwrelease/internal/selector"
	"github.com/oarkflow/fwrelease/internal/tmpl"
)

// Options contains the options of a release run
type Options struct {
	// Project is the top level directory of the firmware project
	Project string

	// Release name, empty to auto select or prompt
	Release string

	// Build base name, "latest", or empty to prompt per target
	Build string

	// Version of the release, prompted for when empty
	Version string

	// Prev is the previous version for the release notes range
	Prev string

	// GitHub credentials
	User     string
	Password string
	Token    string

	// Push tags the repository and publishes the release
	Push bool

	// NonInteractive fails instead of prompting
	NonInteractive bool

	// Fs defaults to the OS filesystem
	Fs afero.Fs

	// Prompter defaults to the terminal, or to no prompting when
	// NonInteractive is set
	Prompter prompt.Prompter

	// NewHosting overrides the GitHub client used for publishing
	NewHosting publish.HostingFactory
}

// Result describes what a run produced
type Result struct {
	Release   string
	Version   string
	Prev      string
	Artifacts []artifact.Artifact
	Published bool
}

// Pipeline orchestrates the release process
type Pipeline struct {
	config      *config.Config
	options     Options
	fs          afero.Fs
	prompter    prompt.Prompter
	artifacts   *artifact.Manager
	firmwareDir string
	startTime   time.Time
}

// New loads and validates the release file of the project
func New(opts Options) (*Pipeline, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("%w: project directory is required", config.ErrValidation)
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	prompter := opts.Prompter
	if prompter == nil {
		if opts.NonInteractive {
			prompter = prompt.Disabled{}
		} else {
			prompter = prompt.NewTerminal()
		}
	}

	cfgPath := config.Path(opts.Project)
	cfg, err := config.LoadFs(fs, cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checksum.Validate(cfg.Checksum); err != nil {
		return nil, fmt.Errorf("%w: Checksum: %v", config.ErrValidation, err)
	}

	log.Debug("Loaded release file", "path", cfgPath, "releases", len(cfg.Releases), "targets", len(cfg.Targets))

	return &Pipeline{
		config:      cfg,
		options:     opts,
		fs:          fs,
		prompter:    prompter,
		artifacts:   artifact.NewManager(),
		firmwareDir: config.FirmwareDir(opts.Project),
		startTime:   time.Now(),
	}, nil
}

// Config returns the loaded release file
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Selector returns a selector over the project's firmware directory
func (p *Pipeline) Selector() *selector.Selector {
	return selector.New(p.fs, p.config, p.firmwareDir, p.prompter)
}

// Run selects the release and builds, generates the bundles and, with Push,
// publishes them.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	sel := p.Selector()

	relName, rel, err := sel.Release(p.options.Release)
	if err != nil {
		return nil, err
	}

	images, err := sel.Builds(rel, p.options.Build)
	if err != nil {
		return nil, err
	}

	var repo *git.Repository
	var tags TagLister
	if p.options.Push {
		if repo, err = git.Open(p.options.Project); err != nil {
			return nil, err
		}
		tags = repo
	}

	version, prev, err := p.versions(relName, tags)
	if err != nil {
		return nil, err
	}

	log.Info("Release", "name", relName, "version", version, "prev", prev)
	log.Info("Images", "files", images)

	tmplCtx := tmpl.New(relName, version)
	tmplCtx.Set("Prev", prev)

	for _, img := range images {
		p.artifacts.Add(artifact.New(img, artifact.TypeImage))
	}

	if err := p.bundles(tmplCtx, rel, images); err != nil {
		return nil, err
	}
	for _, b := range p.artifacts.Bundles() {
		log.Info("Bundle ready", "type", b.Type, "path", b.Path)
	}

	if err := checksum.NewGenerator(p.fs, p.config.Checksum, p.firmwareDir, p.artifacts, tmplCtx).Run(); err != nil {
		return nil, err
	}

	result := &Result{
		Release:   relName,
		Version:   version,
		Prev:      prev,
		Artifacts: p.artifacts.List(),
	}

	if p.options.Push {
		if err := p.publish(ctx, repo, tmplCtx); err != nil {
			return nil, err
		}
		result.Published = true
	}

	elapsed := time.Since(p.startTime)
	log.Info("Release completed successfully", "artifacts", p.artifacts.Count(), "duration", elapsed.Round(time.Millisecond))

	return result, nil
}

// bundles creates the archives requested by the release types
func (p *Pipeline) bundles(tmplCtx *tmpl.Context, rel config.Release, images []string) error {
	creator := archive.NewCreator(p.fs, p.config, p.firmwareDir)

	if rel.HasType(config.TypeRogue) {
		a, err := creator.Rogue(tmplCtx, rel, images)
		if err != nil {
			return fmt.Errorf("failed to build Rogue package: %w", err)
		}
		p.artifacts.Add(*a)
	}

	if rel.HasType(config.TypeCPSW) {
		a, err := creator.CPSW(tmplCtx, rel)
		if err != nil {
			return fmt.Errorf("failed to build CPSW archive: %w", err)
		}
		p.artifacts.Add(*a)
	}

	return nil
}

// publish tags the repository and creates the GitHub release
func (p *Pipeline) publish(ctx context.Context, repo *git.Repository, tmplCtx *tmpl.Context) error {
	owner := p.config.GitHubOwner
	if owner == "" {
		owner = config.DefaultGitHubOwner
	}

	publisher := publish.New(repo, publish.Options{
		Owner: owner,
		Credentials: publish.Credentials{
			Username: p.options.User,
			Password: p.options.Password,
			Token:    p.options.Token,
		},
		Prompter:   p.prompter,
		NewHosting: p.options.NewHosting,
		Fs:         p.fs,
	})

	paths := p.artifacts.Paths()
	for i, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			paths[i] = abs
		}
	}

	return publisher.Publish(ctx, tmplCtx, paths)
}
