package archive

import (
	"strings"

	"github.com/oarkflow/fwrelease/internal/tmpl"
)

// setupTemplate renders setup.py. It must stay on distutils: a setuptools
// install produces an egg without the config and image data.
const setupTemplate = `

from distutils.core import setup

setup (
   name='{{ .Release }}',
   version='{{ .Version }}',
   packages=[
{{- range .Packages }}
             '{{ . }}',
{{- end }}
            ],
   package_data={'{{ .TopPackage }}':['config/*','images/*']}
)
`

// initTemplate is appended to the top package __init__.py
const initTemplate = `

##################### Added by release script ###################
import os
__version__ = '{{ .Version }}'
ConfigDir = os.path.dirname(__file__) + '/config'
ImageDir  = os.path.dirname(__file__) + '/images'
#################################################################
`

// initMarkers identify __init__.py lines replaced by the release block
var initMarkers = []string{
	"import os",
	"__version__",
	"ConfigDir",
	"ImageDir",
}

// SetupPy renders the package descriptor for the given package directories
func SetupPy(ctx *tmpl.Context, topPackage string, packages []string) (string, error) {
	return ctx.
		With("TopPackage", topPackage).
		With("Packages", packages).
		Apply(setupTemplate)
}

// RewriteInit drops the lines carrying release metadata from an __init__.py
// and appends the block defining the version and data directories.
func RewriteInit(ctx *tmpl.Context, content string) (string, error) {
	var b strings.Builder

	for _, line := range strings.SplitAfter(content, "\n") {
		if hasMarker(line) {
			continue
		}
		b.WriteString(line)
	}

	block, err := ctx.Apply(initTemplate)
	if err != nil {
		return "", err
	}
	b.WriteString(block)

	return b.String(), nil
}

func hasMarker(line string) bool {
	for _, m := range initMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}
