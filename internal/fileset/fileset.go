/*
Package fileset expands file group directories into file and folder entries.
*/
package fileset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/fwrelease/internal/config"
)

// ErrEmpty is returned when a required file group resolves to nothing.
var ErrEmpty = errors.New("required file group is empty")

// Kind is the type of a filesystem entry
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Entry is a file or folder found below a file group directory
type Entry struct {
	// Kind of the entry
	Kind Kind

	// Path is the filesystem path
	Path string

	// RelPath is Path relative to its group directory, slash separated.
	// It is used as the path inside archives.
	RelPath string
}

// IsDir reports whether the entry is a folder
func (e Entry) IsDir() bool {
	return e.Kind == KindFolder
}

// Resolver walks file group directories below the firmware directory
type Resolver struct {
	fs          afero.Fs
	firmwareDir string
}

// NewResolver creates a resolver for directories relative to firmwareDir
func NewResolver(fs afero.Fs, firmwareDir string) *Resolver {
	return &Resolver{
		fs:          fs,
		firmwareDir: firmwareDir,
	}
}

// Group resolves the global and release directories listed under key
func (r *Resolver) Group(cfg *config.Config, rel config.Release, key config.GroupKey) ([]Entry, error) {
	entries, err := r.Resolve(cfg.Files(rel, key))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", key, err)
	}
	log.Debug("Resolved file group", "group", key, "entries", len(entries))
	return entries, nil
}

// Resolve walks each directory in order and returns every folder and file
// below it. The directory itself is not part of the result.
func (r *Resolver) Resolve(dirs []string) ([]Entry, error) {
	var entries []Entry

	for _, d := range dirs {
		base := filepath.Join(r.firmwareDir, d)

		if _, err := r.fs.Stat(base); os.IsNotExist(err) {
			log.Warn("File group directory does not exist", "dir", base)
			continue
		}

		err := afero.Walk(r.fs, base, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if path == base {
				return nil
			}

			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}

			kind := KindFile
			if info.IsDir() {
				kind = KindFolder
			}

			entries = append(entries, Entry{
				Kind:    kind,
				Path:    path,
				RelPath: filepath.ToSlash(rel),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", base, err)
		}
	}

	return entries, nil
}

// Files returns only the file entries
func Files(entries []Entry) []Entry {
	var files []Entry
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e)
		}
	}
	return files
}
