package test

import (
	"os"
	"path/filepath"
	"testing"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

var sig = &object.Signature{
	Name:  "A",
	Email: "a@b.com",
}

// WriteFile writes below dir, creating intermediate directories
func WriteFile(t testing.TB, dir string, name string, contents []byte) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, contents, 0644))
}

// WriteGitFile writes and commits a single file
func WriteGitFile(t testing.TB, gitDir string, wt *goGit.Worktree, name string, contents []byte) {
	t.Helper()
	WriteFile(t, gitDir, name, contents)

	_, err := wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("add "+name, &goGit.CommitOptions{
		Author: sig,
	})
	require.NoError(t, err)
}

// NewGitRepo An empty repository in a temporary directory
func NewGitRepo(t testing.TB) (string, *goGit.Repository, *goGit.Worktree) {
	t.Helper()
	gitDir := t.TempDir()

	repo, err := goGit.PlainInit(gitDir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	return gitDir, repo, wt
}
