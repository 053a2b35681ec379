package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/fwrelease/internal/artifact"
	"github.com/oarkflow/fwrelease/internal/config"
	"github.com/oarkflow/fwrelease/internal/prompt"
)

const releaseFile = `
TopPackage: mypkg
Checksum: sha256
RoguePackages:
  - python
CpswSource:
  - yaml
Releases:
  MyRel:
    Targets: [TargetA]
    Types: [Rogue, CPSW]
Targets:
  TargetA:
    Extensions: [mcs, bit]
`

const twoReleases = `
TopPackage: mypkg
RoguePackages:
  - python
Releases:
  First:
    Targets: [TargetA]
    Types: [Rogue]
  Second:
    Targets: [TargetA]
    Types: [Rogue]
Targets:
  TargetA:
    Extensions: [mcs]
`

func projectFiles(releases string) map[string]string {
	return map[string]string{
		"firmware/releases.yaml":                        releases,
		"firmware/python/mypkg/__init__.py":             "__version__ = 'dev'\n",
		"firmware/yaml/top.yaml":                        "top: {}\n",
		"firmware/targets/TargetA/images/TargetA_1.mcs": "one",
		"firmware/targets/TargetA/images/TargetA_1.bit": "one",
		"firmware/targets/TargetA/images/TargetA_2.mcs": "two",
		"firmware/targets/TargetA/images/TargetA_2.bit": "two",
	}
}

func projectFs(t *testing.T, releases string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, content := range projectFiles(releases) {
		require.NoError(t, afero.WriteFile(fs, "/proj/"+p, []byte(content), 0644))
	}
	return fs
}

func TestRun(t *testing.T) {
	fs := projectFs(t, releaseFile)

	p, err := New(Options{
		Project:        "/proj",
		Build:          "latest",
		Version:        "v1.2.0",
		NonInteractive: true,
		Fs:             fs,
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "MyRel", res.Release)
	assert.Equal(t, "v1.2.0", res.Version)
	assert.False(t, res.Published)

	var paths []string
	var types []artifact.Type
	for _, a := range res.Artifacts {
		paths = append(paths, a.Path)
		types = append(types, a.Type)
	}
	assert.Equal(t, []string{
		"/proj/firmware/targets/TargetA/images/TargetA_2.mcs",
		"/proj/firmware/targets/TargetA/images/TargetA_2.bit",
		"/proj/firmware/rogue_MyRel_v1.2.0.zip",
		"/proj/firmware/cpsw_MyRel_v1.2.0.tar.gz",
		"/proj/firmware/checksums_MyRel_v1.2.0.txt",
	}, paths)
	assert.Equal(t, []artifact.Type{
		artifact.TypeImage,
		artifact.TypeImage,
		artifact.TypeRoguePackage,
		artifact.TypeSourceArchive,
		artifact.TypeChecksum,
	}, types)

	sums, err := afero.ReadFile(fs, "/proj/firmware/checksums_MyRel_v1.2.0.txt")
	require.NoError(t, err)
	assert.Contains(t, string(sums), "  rogue_MyRel_v1.2.0.zip\n")
	assert.Contains(t, string(sums), "  TargetA_2.mcs\n")
}

func TestRunPrompts(t *testing.T) {
	fs := projectFs(t, twoReleases)
	answers := prompt.NewScripted("1", "0", "v3.0.0")

	p, err := New(Options{Project: "/proj", Fs: fs, Prompter: answers})
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Second", res.Release)
	assert.Equal(t, "v3.0.0", res.Version)
	assert.Len(t, answers.Asked, 3)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "/proj/firmware/targets/TargetA/images/TargetA_1.mcs", res.Artifacts[0].Path)
	assert.Equal(t, "/proj/firmware/rogue_Second_v3.0.0.zip", res.Artifacts[1].Path)
}

func TestRunErrors(t *testing.T) {
	t.Run("unknown release", func(t *testing.T) {
		p, err := New(Options{Project: "/proj", Release: "Nope", Build: "latest", Version: "v1", Fs: projectFs(t, releaseFile)})
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.ErrorIs(t, err, config.ErrValidation)
	})

	t.Run("unknown build", func(t *testing.T) {
		p, err := New(Options{Project: "/proj", Build: "TargetA_9", Version: "v1", Fs: projectFs(t, releaseFile)})
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.ErrorIs(t, err, config.ErrValidation)
	})

	t.Run("invalid index", func(t *testing.T) {
		p, err := New(Options{Project: "/proj", Fs: projectFs(t, twoReleases), Prompter: prompt.NewScripted("5")})
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.ErrorIs(t, err, config.ErrValidation)
	})

	t.Run("non interactive", func(t *testing.T) {
		p, err := New(Options{Project: "/proj", Build: "latest", NonInteractive: true, Fs: projectFs(t, releaseFile)})
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.ErrorIs(t, err, prompt.ErrNonInteractive)
	})

	t.Run("empty version", func(t *testing.T) {
		p, err := New(Options{Project: "/proj", Build: "latest", Fs: projectFs(t, releaseFile), Prompter: prompt.NewScripted("  ")})
		require.NoError(t, err)
		_, err = p.Run(context.Background())
		assert.ErrorIs(t, err, config.ErrValidation)
	})
}

func TestNewErrors(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, config.ErrValidation)

	_, err = New(Options{Project: "/missing", Fs: afero.NewMemMapFs()})
	assert.ErrorIs(t, err, config.ErrLoad)

	fs := projectFs(t, "Releases: {}\nTargets: {}\n")
	_, err = New(Options{Project: "/proj", Fs: fs})
	assert.ErrorIs(t, err, config.ErrValidation)

	fs = projectFs(t, strings.Replace(releaseFile, "sha256", "crc32", 1))
	_, err = New(Options{Project: "/proj", Fs: fs})
	assert.ErrorIs(t, err, config.ErrValidation)
}

type fakeTags struct {
	tags []string
	err  error
}

func (f fakeTags) Tags(prefix string) ([]string, error) {
	return f.tags, f.err
}

func TestVersions(t *testing.T) {
	tags := fakeTags{tags: []string{"MyRel_v1.0.0", "MyRel_v1.1.0", "MyRel_v2.0.0", "MyRel_bogus"}}

	t.Run("no push", func(t *testing.T) {
		p := &Pipeline{options: Options{Version: "v1.5.0"}, prompter: prompt.Disabled{}}
		version, prev, err := p.versions("MyRel", nil)
		require.NoError(t, err)
		assert.Equal(t, "v1.5.0", version)
		assert.Empty(t, prev)
	})

	t.Run("prev flag", func(t *testing.T) {
		p := &Pipeline{options: Options{Version: "v1.5.0", Prev: "v0.1.0", Push: true}, prompter: prompt.Disabled{}}
		_, prev, err := p.versions("MyRel", tags)
		require.NoError(t, err)
		assert.Equal(t, "v0.1.0", prev)
	})

	t.Run("non interactive guess", func(t *testing.T) {
		p := &Pipeline{options: Options{Version: "v1.5.0", Push: true, NonInteractive: true}, prompter: prompt.Disabled{}}
		_, prev, err := p.versions("MyRel", tags)
		require.NoError(t, err)
		assert.Equal(t, "v1.1.0", prev)
	})

	t.Run("prompt default", func(t *testing.T) {
		answers := prompt.NewScripted("")
		p := &Pipeline{options: Options{Version: "v1.5.0", Push: true}, prompter: answers}
		_, prev, err := p.versions("MyRel", tags)
		require.NoError(t, err)
		assert.Equal(t, "v1.1.0", prev)
		assert.Contains(t, answers.Asked[0], "[v1.1.0]")
	})

	t.Run("prompt answer", func(t *testing.T) {
		p := &Pipeline{options: Options{Version: "v1.5.0", Push: true}, prompter: prompt.NewScripted("v1.0.0")}
		_, prev, err := p.versions("MyRel", tags)
		require.NoError(t, err)
		assert.Equal(t, "v1.0.0", prev)
	})

	t.Run("no previous", func(t *testing.T) {
		p := &Pipeline{options: Options{Version: "v1.5.0", Push: true}, prompter: prompt.NewScripted("")}
		_, _, err := p.versions("MyRel", fakeTags{})
		assert.ErrorIs(t, err, config.ErrValidation)
	})

	t.Run("tag error", func(t *testing.T) {
		p := &Pipeline{options: Options{Version: "v1.5.0", Push: true}, prompter: prompt.Disabled{}}
		_, _, err := p.versions("MyRel", fakeTags{err: errors.New("broken")})
		assert.ErrorContains(t, err, "broken")
	})
}

func TestPreviousVersion(t *testing.T) {
	tags := []string{"MyRel_v1.0.0", "MyRel_v1.10.0", "MyRel_v1.9.0", "MyRel_v2.0.0", "MyRel_dev", "Other_v1.9.9"}

	tests := []struct {
		name    string
		current string
		want    string
	}{
		{name: "below current", current: "v2.0.0", want: "v1.10.0"},
		{name: "between", current: "v1.9.5", want: "v1.9.0"},
		{name: "nothing below", current: "v0.1.0", want: ""},
		{name: "current not semver", current: "next", want: "v2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreviousVersion(tags, "MyRel", tt.current))
		})
	}
}
