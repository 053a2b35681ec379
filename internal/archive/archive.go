/*
Package archive builds the Rogue package zip and the CPSW source tarball.
*/
package archive

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/fwrelease/internal/artifact"
	"github.com/oarkflow/fwrelease/internal/config"
	"github.com/oarkflow/fwrelease/internal/fileset"
	"github.com/oarkflow/fwrelease/internal/tmpl"
)

// Creator creates release archives in the firmware directory
type Creator struct {
	fs       afero.Fs
	cfg      *config.Config
	resolver *fileset.Resolver
	distDir  string
}

// NewCreator creates a new archive creator
func NewCreator(fs afero.Fs, cfg *config.Config, firmwareDir string) *Creator {
	return &Creator{
		fs:       fs,
		cfg:      cfg,
		resolver: fileset.NewResolver(fs, firmwareDir),
		distDir:  firmwareDir,
	}
}

// Rogue creates the Python package zip holding the RoguePackages tree, the
// RogueConfig files under <TopPackage>/config and the images under
// <TopPackage>/images, with a generated setup.py and a rewritten top
// package __init__.py.
func (c *Creator) Rogue(ctx *tmpl.Context, rel config.Release, images []string) (*artifact.Artifact, error) {
	log.Info("Finding Rogue files")

	pkgs, err := c.resolver.Group(c.cfg, rel, config.RoguePackages)
	if err != nil {
		return nil, err
	}
	cfgs, err := c.resolver.Group(c.cfg, rel, config.RogueConfig)
	if err != nil {
		return nil, err
	}

	if len(pkgs) == 0 {
		return nil, fmt.Errorf("%w: Rogue packages list is empty", fileset.ErrEmpty)
	}
	if c.cfg.TopPackage == "" {
		return nil, fmt.Errorf("%w: TopPackage is not defined", config.ErrValidation)
	}

	top := c.cfg.TopPackage
	topInit := top + "/__init__.py"

	var initEntry *fileset.Entry
	var packages []string
	for i, e := range pkgs {
		if e.RelPath == topInit {
			initEntry = &pkgs[i]
		}
		if e.IsDir() {
			packages = append(packages, e.RelPath)
		}
	}
	if initEntry == nil {
		return nil, fmt.Errorf("%w: %s not found in Rogue packages", fileset.ErrEmpty, topInit)
	}

	setup, err := SetupPy(ctx, top, packages)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", tmpl.SetupFileName, err)
	}

	raw, err := afero.ReadFile(c.fs, initEntry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", initEntry.Path, err)
	}
	initPy, err := RewriteInit(ctx, string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite %s: %w", topInit, err)
	}

	name, err := ctx.Apply(tmpl.RogueArchive)
	if err != nil {
		return nil, err
	}
	archivePath := filepath.Join(c.distDir, name)

	log.Info("Creating Rogue zipfile", "path", archivePath)

	err = c.write(archivePath, func(w Writer) error {
		b := NewBuilder(c.fs, w)

		if err := b.Place(Rule{
			Entries:        pkgs,
			IncludeFolders: true,
			Skip: func(e fileset.Entry) bool {
				return e.RelPath == topInit
			},
		}); err != nil {
			return err
		}

		if err := b.Place(Rule{
			Entries:        cfgs,
			Prefix:         path.Join(top, "config"),
			IncludeFolders: true,
		}); err != nil {
			return err
		}

		for _, img := range images {
			if err := b.AddFile(img, path.Join(top, "images", filepath.Base(img))); err != nil {
				return err
			}
		}

		if err := b.AddBytes(tmpl.SetupFileName, []byte(setup)); err != nil {
			return err
		}
		return b.AddBytes(topInit, []byte(initPy))
	}, func(f afero.File) Writer {
		return newZipWriter(f)
	})
	if err != nil {
		return nil, err
	}

	a := artifact.New(archivePath, artifact.TypeRoguePackage)
	return &a, nil
}

// CPSW creates the source tarball. CpswSource files are placed under
// <release>_project.yaml and CpswConfig files under its config directory.
// Directory nodes are not archived.
func (c *Creator) CPSW(ctx *tmpl.Context, rel config.Release) (*artifact.Artifact, error) {
	log.Info("Finding CPSW files")

	srcs, err := c.resolver.Group(c.cfg, rel, config.CpswSource)
	if err != nil {
		return nil, err
	}
	cfgs, err := c.resolver.Group(c.cfg, rel, config.CpswConfig)
	if err != nil {
		return nil, err
	}

	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w: CPSW source list is empty", fileset.ErrEmpty)
	}

	baseDir, err := ctx.Apply(tmpl.CPSWBaseDir)
	if err != nil {
		return nil, err
	}
	name, err := ctx.Apply(tmpl.CPSWArchive)
	if err != nil {
		return nil, err
	}
	archivePath := filepath.Join(c.distDir, name)

	log.Info("Creating CPSW tarfile", "path", archivePath)

	err = c.write(archivePath, func(w Writer) error {
		b := NewBuilder(c.fs, w)

		if err := b.Place(Rule{Entries: srcs, Prefix: baseDir}); err != nil {
			return err
		}
		return b.Place(Rule{Entries: cfgs, Prefix: path.Join(baseDir, "config")})
	}, func(f afero.File) Writer {
		return newTarGzWriter(f)
	})
	if err != nil {
		return nil, err
	}

	a := artifact.New(archivePath, artifact.TypeSourceArchive)
	return &a, nil
}

// write creates the archive file, fills it and removes it again on failure
func (c *Creator) write(archivePath string, fill func(Writer) error, open func(afero.File) Writer) (err error) {
	file, err := c.fs.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", archivePath, err)
	}

	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			log.Debug("Removing incomplete archive", "path", archivePath)
			_ = c.fs.Remove(archivePath)
		}
	}()

	w := open(file)
	if err := fill(w); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", archivePath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", archivePath, err)
	}
	return nil
}
