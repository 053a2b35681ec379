/*
Package artifact tracks the files a release produces and attaches.
*/
package artifact

import (
	"path/filepath"
	"slices"
)

// Type is the role a file plays in a release
type Type string

const (
	TypeImage         Type = "Image"
	TypeRoguePackage  Type = "Rogue Package"
	TypeSourceArchive Type = "CPSW Archive"
	TypeChecksum      Type = "Checksum"
)

// IsBundle reports whether files of this type are generated archives
func (t Type) IsBundle() bool {
	return t == TypeRoguePackage || t == TypeSourceArchive
}

// Artifact is one release file. Name is the asset name used on upload.
type Artifact struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type Type   `json:"type"`
}

// New names the artifact after the base name of path
func New(path string, typ Type) Artifact {
	return Artifact{Name: filepath.Base(path), Path: path, Type: typ}
}

// Manager keeps release artifacts in attachment order: images first, then
// bundles, then checksums.
type Manager struct {
	artifacts []Artifact
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Add(a Artifact) {
	m.artifacts = append(m.artifacts, a)
}

// List returns a copy of the artifacts
func (m *Manager) List() []Artifact {
	return slices.Clone(m.artifacts)
}

// Count returns the number of artifacts
func (m *Manager) Count() int {
	return len(m.artifacts)
}

// Paths returns the attachment paths in order
func (m *Manager) Paths() []string {
	paths := make([]string, len(m.artifacts))
	for i, a := range m.artifacts {
		paths[i] = a.Path
	}
	return paths
}

// Without returns the artifacts whose type is none of types
func (m *Manager) Without(types ...Type) []Artifact {
	var out []Artifact
	for _, a := range m.artifacts {
		if !slices.Contains(types, a.Type) {
			out = append(out, a)
		}
	}
	return out
}

// Bundles returns the generated archives
func (m *Manager) Bundles() []Artifact {
	var out []Artifact
	for _, a := range m.artifacts {
		if a.Type.IsBundle() {
			out = append(out, a)
		}
	}
	return out
}
