package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Release Bot"
	cfg.User.Email = "bot@example.com"
	cfg.Remotes[RemoteName] = &config.RemoteConfig{
		Name: RemoteName,
		URLs: []string{"git@github.com:slaclab/my-firmware.git"},
	}
	require.NoError(t, repo.SetConfig(cfg))

	return &testRepo{t: t, dir: dir, repo: repo}
}

func (r *testRepo) commit(file, content, msg string) {
	r.t.Helper()
	require.NoError(r.t, os.WriteFile(filepath.Join(r.dir, file), []byte(content), 0644))

	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	_, err = wt.Add(file)
	require.NoError(r.t, err)
	_, err = wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
}

func TestIsDirty(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("a.txt", "a", "initial")

	r, err := Open(tr.dir)
	require.NoError(t, err)

	dirty, err := r.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(tr.dir, "untracked.txt"), []byte("x"), 0644))
	dirty, err = r.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.NoError(t, r.EnsureClean())

	require.NoError(t, os.WriteFile(filepath.Join(tr.dir, "a.txt"), []byte("changed"), 0644))
	dirty, err = r.IsDirty()
	require.NoError(t, err)
	assert.True(t, dirty)
	assert.ErrorIs(t, r.EnsureClean(), ErrDirty)
}

func TestOpenNotARepo(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestOriginURL(t *testing.T) {
	tr := newTestRepo(t)
	r, err := Open(tr.dir)
	require.NoError(t, err)

	url, err := r.OriginURL()
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:slaclab/my-firmware.git", url)
}

func TestProjectName(t *testing.T) {
	tests := []struct {
		url     string
		owner   string
		want    string
		wantErr bool
	}{
		{url: "git@github.com:slaclab/my-firmware.git", owner: "slaclab", want: "my-firmware"},
		{url: "https://github.com/slaclab/my-firmware.git", owner: "slaclab", want: "my-firmware"},
		{url: "https://github.com/slaclab/my-firmware", owner: "slaclab", want: "my-firmware"},
		{url: "https://github.com/other/repo.git", owner: "other", want: "repo"},
		{url: "https://github.com/other/repo.git", owner: "slaclab", wantErr: true},
		{url: "https://github.com/slaclab/.git", owner: "slaclab", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ProjectName(tt.url, tt.owner)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTagsAndCommits(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("a.txt", "1", "feat: first")

	r, err := Open(tr.dir)
	require.NoError(t, err)
	require.NoError(t, r.CreateTag("MyRel_v1.0.0", "MyRel version v1.0.0"))

	tr.commit("a.txt", "2", "fix: second")
	tr.commit("a.txt", "3", "docs: third\n\nlonger body")
	require.NoError(t, r.CreateTag("MyRel_v1.1.0", "MyRel version v1.1.0"))
	require.NoError(t, r.CreateTag("Other_v9.0.0", "Other version v9.0.0"))

	tags, err := r.Tags("MyRel_")
	require.NoError(t, err)
	assert.Equal(t, []string{"MyRel_v1.0.0", "MyRel_v1.1.0"}, tags)

	tag, err := tr.repo.Tag("MyRel_v1.1.0")
	require.NoError(t, err)
	obj, err := tr.repo.TagObject(tag.Hash())
	require.NoError(t, err, "tag must be annotated")
	assert.Equal(t, "MyRel version v1.1.0", obj.Message[:len("MyRel version v1.1.0")])
	assert.Equal(t, "Release Bot", obj.Tagger.Name)

	commits, err := r.Commits("MyRel_v1.0.0", "MyRel_v1.1.0")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "docs: third", commits[0].Subject)
	assert.Equal(t, "longer body", commits[0].Body)
	assert.Equal(t, "fix: second", commits[1].Subject)
	assert.Equal(t, "Dev", commits[1].AuthorName)

	all, err := r.Commits("", "MyRel_v1.1.0")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = r.Commits("MyRel_v0.0.1", "MyRel_v1.1.0")
	assert.Error(t, err)
}

func TestCreateTagExists(t *testing.T) {
	tr := newTestRepo(t)
	tr.commit("a.txt", "1", "initial")

	r, err := Open(tr.dir)
	require.NoError(t, err)
	require.NoError(t, r.CreateTag("R_v1", "R version v1"))
	assert.Error(t, r.CreateTag("R_v1", "R version v1"))
}

func TestHTTPAuth(t *testing.T) {
	assert.Nil(t, HTTPAuth("git@github.com:slaclab/x.git", "user", "pw"))
	assert.Nil(t, HTTPAuth("https://github.com/slaclab/x.git", "user", ""))

	auth := HTTPAuth("https://github.com/slaclab/x.git", "", "token")
	require.IsType(t, &http.BasicAuth{}, auth)
	assert.Equal(t, "x-access-token", auth.(*http.BasicAuth).Username)
	assert.Equal(t, "token", auth.(*http.BasicAuth).Password)
}

func TestGroupCommits(t *testing.T) {
	commits := []Commit{
		{Hash: "1", Subject: "feat: a"},
		{Hash: "2", Subject: "fix: b"},
		{Hash: "3", Subject: "random"},
		{Hash: "4", Subject: "feat(x): c"},
	}
	groups := GroupCommits(commits, []CommitGroup{
		{Title: "Features", Regexp: `^feat(\(.+\))?!?:`},
		{Title: "Docs", Regexp: `^docs:`},
		{Title: "Fixes", Regexp: `^fix:`},
	}, "Other")

	require.Len(t, groups, 3)
	assert.Equal(t, "Features", groups[0].Title)
	assert.Len(t, groups[0].Commits, 2)
	assert.Equal(t, "Fixes", groups[1].Title)
	assert.Equal(t, "Other", groups[2].Title)
	assert.Equal(t, "random", groups[2].Commits[0].Subject)
}

func TestFilterCommits(t *testing.T) {
	commits := []Commit{
		{Subject: "Merge branch 'main' into dev"},
		{Subject: "fix: b"},
	}
	got := FilterCommits(commits, []string{`^Merge branch `, `[`})
	require.Len(t, got, 1)
	assert.Equal(t, "fix: b", got[0].Subject)
}
