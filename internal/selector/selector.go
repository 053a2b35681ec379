/*
Package selector resolves which release to generate and which build images
each of its targets ships.
*/
package selector

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/fwrelease/internal/config"
	"github.com/oarkflow/fwrelease/internal/prompt"
)

// Latest selects the lexicographically last build of a target
const Latest = "latest"

// Selector chooses releases and builds from flags or prompts
type Selector struct {
	fs          afero.Fs
	cfg         *config.Config
	firmwareDir string
	prompter    prompt.Prompter
}

// New creates a selector
func New(fs afero.Fs, cfg *config.Config, firmwareDir string, prompter prompt.Prompter) *Selector {
	return &Selector{
		fs:          fs,
		cfg:         cfg,
		firmwareDir: firmwareDir,
		prompter:    prompter,
	}
}

// Release selects a release definition. A non-empty name must exist; a
// single release is selected automatically; otherwise the user picks one.
func (s *Selector) Release(name string) (string, config.Release, error) {
	names := s.cfg.ReleaseNames()
	log.Info("Available releases", "releases", names)

	switch {
	case name != "":
		log.Info("Using command line release", "release", name)
		if _, ok := s.cfg.Releases[name]; !ok {
			return "", config.Release{}, fmt.Errorf("%w: invalid command line release %s", config.ErrValidation, name)
		}

	case len(names) == 1:
		name = names[0]
		log.Info("Auto selecting release", "release", name)

	default:
		idx, err := s.prompter.Select("Enter index of release to generate", names)
		if err != nil {
			return "", config.Release{}, selectionError("release", err)
		}
		name = names[idx]
	}

	if err := s.cfg.ValidateRelease(name); err != nil {
		return "", config.Release{}, err
	}

	return name, s.cfg.Releases[name], nil
}

// ImageDir returns the image directory of a target
func (s *Selector) ImageDir(target string) string {
	return filepath.Join(s.firmwareDir, "targets", target, "images")
}

// Candidates lists the build base names found in the image directory of a
// target, sorted ascending. Only files whose name contains the target name
// count; the base name is the text before the first dot.
func (s *Selector) Candidates(target string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.ImageDir(target))
	if err != nil {
		return nil, fmt.Errorf("failed to read images for target %s: %w", target, err)
	}

	seen := make(map[string]bool)
	var bases []string
	for _, fi := range infos {
		if !fi.Mode().IsRegular() || !strings.Contains(fi.Name(), target) {
			continue
		}
		base, _, _ := strings.Cut(fi.Name(), ".")
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
		}
	}

	sort.Strings(bases)
	return bases, nil
}

// Builds selects one build per release target and returns the image files
// of each, in target order then extension order.
func (s *Selector) Builds(rel config.Release, build string) ([]string, error) {
	var images []string

	for _, target := range rel.Targets {
		if err := s.cfg.ValidateTarget(target); err != nil {
			return nil, err
		}

		buildName, err := s.build(target, build)
		if err != nil {
			return nil, err
		}

		found, err := s.images(target, buildName)
		if err != nil {
			return nil, err
		}
		images = append(images, found...)
	}

	return images, nil
}

func (s *Selector) build(target, build string) (string, error) {
	candidates, err := s.Candidates(target)
	if err != nil {
		return "", err
	}
	log.Info("Found builds", "target", target, "builds", candidates)

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no builds found for target %s in %s", config.ErrValidation, target, s.ImageDir(target))
	}

	switch {
	case build == Latest:
		build = candidates[len(candidates)-1]
		log.Info("Auto selecting latest build", "target", target, "build", build)

	case build != "":
		log.Info("Using command line build", "target", target, "build", build)
		if !contains(candidates, build) {
			return "", fmt.Errorf("%w: invalid command line build %s for target %s", config.ErrValidation, build, target)
		}

	default:
		idx, err := s.prompter.Select(fmt.Sprintf("Enter index of build to include for target %s", target), candidates)
		if err != nil {
			return "", selectionError("build", err)
		}
		build = candidates[idx]
	}

	return build, nil
}

// images returns {build}.{ext} for each target extension that exists
func (s *Selector) images(target, build string) ([]string, error) {
	dir := s.ImageDir(target)
	var images []string

	for _, ext := range s.cfg.Targets[target].Extensions {
		path := filepath.Join(dir, build+"."+ext)
		fi, err := s.fs.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			log.Warn("Image not found", "target", target, "file", path)
			continue
		}
		images = append(images, path)
	}

	log.Info("Selected images", "target", target, "build", build, "images", len(images))
	return images, nil
}

func selectionError(what string, err error) error {
	if errors.Is(err, prompt.ErrInvalidIndex) {
		return fmt.Errorf("%w: invalid %s index: %w", config.ErrValidation, what, err)
	}
	return fmt.Errorf("failed to select %s: %w", what, err)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
