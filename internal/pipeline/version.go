package pipeline

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/oarkflow/fwrelease/internal/config"
)

// TagLister lists repository tags by prefix
type TagLister interface {
	Tags(prefix string) ([]string, error)
}

// versions resolves the release version and, when publishing, the previous
// version the notes are generated against.
func (p *Pipeline) versions(release string, tags TagLister) (string, string, error) {
	version := strings.TrimSpace(p.options.Version)
	if version == "" {
		answer, err := p.prompter.Input("Enter version for release (i.e. v1.2.3)")
		if err != nil {
			return "", "", fmt.Errorf("failed to read version: %w", err)
		}
		version = strings.TrimSpace(answer)
	}
	if version == "" {
		return "", "", fmt.Errorf("%w: version is required", config.ErrValidation)
	}
	if _, err := semver.NewVersion(version); err != nil {
		log.Warn("Version is not a semantic version", "version", version, "error", err)
	}

	if !p.options.Push {
		return version, p.options.Prev, nil
	}

	prev := strings.TrimSpace(p.options.Prev)
	if prev != "" {
		return version, prev, nil
	}

	var guess string
	if tags != nil {
		existing, err := tags.Tags(release + "_")
		if err != nil {
			return "", "", err
		}
		guess = PreviousVersion(existing, release, version)
	}

	if p.options.NonInteractive && guess != "" {
		log.Info("Using previous version from tags", "prev", guess)
		return version, guess, nil
	}

	msg := "Enter previous version for compare (i.e. v1.2.3)"
	if guess != "" {
		msg += fmt.Sprintf(" [%s]", guess)
	}
	answer, err := p.prompter.Input(msg)
	if err != nil {
		return "", "", fmt.Errorf("failed to read previous version: %w", err)
	}

	prev = strings.TrimSpace(answer)
	if prev == "" {
		prev = guess
	}
	if prev == "" {
		return "", "", fmt.Errorf("%w: previous version is required to publish", config.ErrValidation)
	}

	return version, prev, nil
}

// PreviousVersion returns the greatest version among tags named
// {release}_{version} that sorts below current. Tags that are not semantic
// versions are ignored. An empty string means none was found.
func PreviousVersion(tags []string, release, current string) string {
	cur, err := semver.NewVersion(current)
	if err != nil {
		cur = nil
	}

	prefix := release + "_"
	var best *semver.Version
	var bestName string
	for _, tag := range tags {
		name, ok := strings.CutPrefix(tag, prefix)
		if !ok {
			continue
		}
		v, err := semver.NewVersion(name)
		if err != nil {
			continue
		}
		if cur != nil && !v.LessThan(cur) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestName = v, name
		}
	}
	return bestName
}
