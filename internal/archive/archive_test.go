package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/fwrelease/internal/config"
	"github.com/oarkflow/fwrelease/internal/fileset"
	"github.com/oarkflow/fwrelease/internal/tmpl"
)

const rawInit = `import os
import pyrogue as pr
__version__ = 'dev'
ConfigDir = None
ImageDir = None
from mypkg._Top import *
`

func projectFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/fw/python/mypkg/__init__.py":     rawInit,
		"/fw/python/mypkg/_Top.py":         "class Top: pass\n",
		"/fw/python/mypkg/sub/__init__.py": "",
		"/fw/config/defaults.yml":          "a: 1\n",
		"/fw/config/sub/x.yml":             "b: 2\n",
		"/fw/yaml/top.yaml":                "top: {}\n",
		"/fw/yaml/sub/a.yaml":              "a: {}\n",
		"/fw/cpswcfg/defaults.yaml":        "d: {}\n",
		"/fw/targets/A/images/A_fw_1.mcs":  "mcs",
		"/fw/targets/A/images/A_fw_1.bit":  "bit",
	}
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
	}
	return fs
}

func projectConfig() *config.Config {
	return &config.Config{
		TopPackage: "mypkg",
		FileGroups: config.FileGroups{
			RoguePackages: []string{"python"},
			CpswSource:    []string{"yaml"},
		},
		Releases: map[string]config.Release{
			"MyRel": {
				Targets: []string{"A"},
				Types:   []string{config.TypeRogue, config.TypeCPSW},
				FileGroups: config.FileGroups{
					RogueConfig: []string{"config"},
					CpswConfig:  []string{"cpswcfg"},
				},
			},
		},
	}
}

func readZip(t *testing.T, fs afero.Fs, path string) map[string]string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(content)
	}
	return files
}

func readTarGz(t *testing.T, fs afero.Fs, path string) []*tar.Header {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	gr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gr)

	var headers []*tar.Header
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		headers = append(headers, h)
	}
	return headers
}

func TestRogue(t *testing.T) {
	fs := projectFs(t)
	cfg := projectConfig()
	ctx := tmpl.New("MyRel", "v1.2.3")
	images := []string{"/fw/targets/A/images/A_fw_1.mcs", "/fw/targets/A/images/A_fw_1.bit"}

	a, err := NewCreator(fs, cfg, "/fw").Rogue(ctx, cfg.Releases["MyRel"], images)
	require.NoError(t, err)
	assert.Equal(t, "/fw/rogue_MyRel_v1.2.3.zip", a.Path)
	assert.Equal(t, "rogue_MyRel_v1.2.3.zip", a.Name)

	files := readZip(t, fs, a.Path)

	for _, name := range []string{
		"mypkg/",
		"mypkg/_Top.py",
		"mypkg/sub/",
		"mypkg/sub/__init__.py",
		"mypkg/config/defaults.yml",
		"mypkg/config/sub/",
		"mypkg/config/sub/x.yml",
		"mypkg/images/A_fw_1.mcs",
		"mypkg/images/A_fw_1.bit",
		"setup.py",
		"mypkg/__init__.py",
	} {
		assert.Contains(t, files, name)
	}
	assert.Len(t, files, 11)
	assert.Equal(t, "mcs", files["mypkg/images/A_fw_1.mcs"])

	setup := files["setup.py"]
	assert.Contains(t, setup, "             'mypkg',\n")
	assert.Contains(t, setup, "             'mypkg/sub',\n")
	assert.Contains(t, setup, "package_data={'mypkg':['config/*','images/*']}")

	name := regexp.MustCompile(`name='([^']*)'`).FindStringSubmatch(setup)
	version := regexp.MustCompile(`version='([^']*)'`).FindStringSubmatch(setup)
	require.Len(t, name, 2)
	require.Len(t, version, 2)
	assert.Equal(t, "MyRel", name[1])
	assert.Equal(t, "v1.2.3", version[1])

	initPy := files["mypkg/__init__.py"]
	assert.NotEqual(t, rawInit, initPy)
	assert.Contains(t, initPy, "import pyrogue as pr\n")
	assert.Contains(t, initPy, "from mypkg._Top import *\n")
	assert.Contains(t, initPy, "__version__ = 'v1.2.3'\n")
	assert.NotContains(t, initPy, "'dev'")
	assert.NotContains(t, initPy, "ConfigDir = None")
	assert.NotContains(t, initPy, "ImageDir = None")
	assert.Equal(t, 1, strings.Count(initPy, "import os\n"))
}

func TestRogueErrors(t *testing.T) {
	ctx := tmpl.New("MyRel", "v1")

	t.Run("empty packages", func(t *testing.T) {
		fs := projectFs(t)
		cfg := projectConfig()
		cfg.RoguePackages = []string{"missing"}

		_, err := NewCreator(fs, cfg, "/fw").Rogue(ctx, cfg.Releases["MyRel"], nil)
		assert.ErrorIs(t, err, fileset.ErrEmpty)

		exists, _ := afero.Exists(fs, "/fw/rogue_MyRel_v1.zip")
		assert.False(t, exists)
	})

	t.Run("no top package", func(t *testing.T) {
		fs := projectFs(t)
		cfg := projectConfig()
		cfg.TopPackage = ""

		_, err := NewCreator(fs, cfg, "/fw").Rogue(ctx, cfg.Releases["MyRel"], nil)
		assert.ErrorIs(t, err, config.ErrValidation)
	})

	t.Run("no top package init", func(t *testing.T) {
		fs := projectFs(t)
		cfg := projectConfig()
		cfg.TopPackage = "other"

		_, err := NewCreator(fs, cfg, "/fw").Rogue(ctx, cfg.Releases["MyRel"], nil)
		assert.ErrorIs(t, err, fileset.ErrEmpty)
	})

	t.Run("missing image", func(t *testing.T) {
		fs := projectFs(t)
		cfg := projectConfig()

		_, err := NewCreator(fs, cfg, "/fw").Rogue(ctx, cfg.Releases["MyRel"], []string{"/fw/nope.mcs"})
		assert.Error(t, err)

		exists, _ := afero.Exists(fs, "/fw/rogue_MyRel_v1.zip")
		assert.False(t, exists)
	})
}

func TestCPSW(t *testing.T) {
	fs := projectFs(t)
	cfg := projectConfig()
	ctx := tmpl.New("MyRel", "v1.2.3")

	a, err := NewCreator(fs, cfg, "/fw").CPSW(ctx, cfg.Releases["MyRel"])
	require.NoError(t, err)
	assert.Equal(t, "/fw/cpsw_MyRel_v1.2.3.tar.gz", a.Path)

	headers := readTarGz(t, fs, a.Path)

	var names []string
	for _, h := range headers {
		assert.Equal(t, byte(tar.TypeReg), h.Typeflag, h.Name)
		assert.True(t, strings.HasPrefix(h.Name, "MyRel_project.yaml/"), h.Name)
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{
		"MyRel_project.yaml/sub/a.yaml",
		"MyRel_project.yaml/top.yaml",
		"MyRel_project.yaml/config/defaults.yaml",
	}, names)
}

func TestCPSWEmpty(t *testing.T) {
	fs := projectFs(t)
	cfg := projectConfig()
	cfg.CpswSource = nil

	_, err := NewCreator(fs, cfg, "/fw").CPSW(tmpl.New("MyRel", "v1"), cfg.Releases["MyRel"])
	assert.ErrorIs(t, err, fileset.ErrEmpty)
}

func TestRewriteInit(t *testing.T) {
	ctx := tmpl.New("MyRel", "v2.0.0")

	got, err := RewriteInit(ctx, "import os\nimport sys\n__version__ = 'x'\nprint(ConfigDir)\nX = 1")
	require.NoError(t, err)

	want := "import sys\nX = 1" +
		"\n\n##################### Added by release script ###################\n" +
		"import os\n" +
		"__version__ = 'v2.0.0'\n" +
		"ConfigDir = os.path.dirname(__file__) + '/config'\n" +
		"ImageDir  = os.path.dirname(__file__) + '/images'\n" +
		"#################################################################\n"
	assert.Equal(t, want, got)
}

func TestSetupPy(t *testing.T) {
	got, err := SetupPy(tmpl.New("Rel", "v1"), "top", []string{"top", "top/sub"})
	require.NoError(t, err)

	want := "\n\nfrom distutils.core import setup\n\n" +
		"setup (\n" +
		"   name='Rel',\n" +
		"   version='v1',\n" +
		"   packages=[\n" +
		"             'top',\n" +
		"             'top/sub',\n" +
		"            ],\n" +
		"   package_data={'top':['config/*','images/*']}\n" +
		")\n"
	assert.Equal(t, want, got)
}
