// Package checksum writes the checksum file attached to a release.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/fwrelease/internal/artifact"
	"github.com/oarkflow/fwrelease/internal/tmpl"
)

// algorithms maps the Checksum values accepted in releases.yaml
var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// Names returns the supported algorithm names, sorted
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate accepts an empty algorithm, which disables checksums.
func Validate(algorithm string) error {
	if algorithm == "" {
		return nil
	}
	if _, ok := algorithms[strings.ToLower(algorithm)]; !ok {
		return fmt.Errorf("unsupported checksum algorithm %q (supported: %s)", algorithm, strings.Join(Names(), ", "))
	}
	return nil
}

// Generator hashes every release artifact into one sha256sum-style file in
// the firmware directory.
type Generator struct {
	fs        afero.Fs
	algorithm string
	dir       string
	artifacts *artifact.Manager
	names     *tmpl.Context
}

func NewGenerator(fs afero.Fs, algorithm, dir string, artifacts *artifact.Manager, names *tmpl.Context) *Generator {
	return &Generator{
		fs:        fs,
		algorithm: strings.ToLower(algorithm),
		dir:       dir,
		artifacts: artifacts,
		names:     names,
	}
}

// Run writes the checksum file and registers it as an artifact. It does
// nothing when no algorithm is configured.
func (g *Generator) Run() error {
	if g.algorithm == "" {
		log.Debug("Checksums disabled")
		return nil
	}
	if err := Validate(g.algorithm); err != nil {
		return err
	}

	files := g.artifacts.Without(artifact.TypeChecksum)
	if len(files) == 0 {
		log.Warn("No release files to checksum")
		return nil
	}

	var out strings.Builder
	for _, a := range files {
		sum, err := Sum(g.fs, g.algorithm, a.Path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", a.Name, err)
		}
		fmt.Fprintf(&out, "%s  %s\n", sum, a.Name)
		log.Debug("Checksum", "file", a.Name, g.algorithm, sum)
	}

	name, err := g.names.Apply(tmpl.ChecksumFile)
	if err != nil {
		return err
	}
	path := filepath.Join(g.dir, name)
	if err := afero.WriteFile(g.fs, path, []byte(out.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	g.artifacts.Add(artifact.New(path, artifact.TypeChecksum))

	log.Info("Wrote checksums", "path", path, "algorithm", g.algorithm, "files", len(files))
	return nil
}

// Sum returns the hex digest of the file at path
func Sum(fs afero.Fs, algorithm, path string) (string, error) {
	newHash, ok := algorithms[strings.ToLower(algorithm)]
	if !ok {
		return "", fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}

	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
