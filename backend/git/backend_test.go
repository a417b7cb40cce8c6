package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//goland:noinspection GoUnhandledErrorResult
func TestReadFromHead(t *testing.T) {
	gitDir, repo, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, gitDir, wt, "tls/example.com.pem", []byte("pile"))
	test.WriteGitFile(t, gitDir, wt, "tls/acme/example.com.pem", []byte("acme-pile"))
	test.WriteGitFile(t, gitDir, wt, "README.md", []byte("readme"))

	ctx := context.Background()
	b := &Backend{Repo: repo, Config: config.GitConfig{SearchPath: "tls"}}

	data, err := b.ReadFile(ctx, "example.com.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("pile"), data)

	data, err = b.ReadFile(ctx, "acme/example.com.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("acme-pile"), data)

	_, err = b.ReadFile(ctx, "README.md")
	assert.True(t, errors.Is(err, backend.ErrNotExist), "outside the search path")

	ok, err := b.IsFile(ctx, "example.com.pem")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.IsFile(ctx, "other.pem")
	assert.NoError(t, err)
	assert.False(t, ok)

	names, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "example.com.pem"}, names)

	names, err = b.List(ctx, "nothing")
	assert.NoError(t, err)
	assert.Empty(t, names)

	version, err := b.Version()
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, head.Hash().String(), version)
}

func TestReadSeesNewCommits(t *testing.T) {
	gitDir, repo, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, gitDir, wt, "a.pem", []byte("v1"))

	b := &Backend{Repo: repo}

	data, err := b.ReadFile(context.Background(), "a.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	test.WriteGitFile(t, gitDir, wt, "a.pem", []byte("v2"))

	data, err = b.ReadFile(context.Background(), "a.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestNotConfigured(t *testing.T) {
	b := &Backend{}

	_, err := b.ReadFile(context.Background(), "a.pem")
	assert.ErrorContains(t, err, "not configured")

	_, err = b.IsFile(context.Background(), "a.pem")
	assert.Error(t, err)
}

func TestFirstReadClones(t *testing.T) {
	originDir, _, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("pile"))

	basedir := t.TempDir()
	b := &Backend{}
	require.NoError(t, b.Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: originDir, Basedir: basedir},
	}))
	assert.Nil(t, b.current(), "nothing cloned by Init")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = b.ReadFile(context.Background(), "example.com.pem")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.DirExists(t, filepath.Join(basedir, ".git"))
}

func TestFailedCloneIsNotRetriedImmediately(t *testing.T) {
	b := &Backend{}
	require.NoError(t, b.Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: filepath.Join(t.TempDir(), "missing"), Basedir: t.TempDir(), OnDemandRefreshMillis: 60_000},
	}))

	_, err := b.ReadFile(context.Background(), "a.pem")
	require.Error(t, err)
	first := b.lastConnect

	_, err = b.ReadFile(context.Background(), "a.pem")
	assert.ErrorContains(t, err, "not cloned yet")
	assert.Equal(t, first, b.lastConnect)
}

func TestCancelledReadDoesNotClone(t *testing.T) {
	originDir, _, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("pile"))

	b := &Backend{}
	require.NoError(t, b.Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: originDir, Basedir: t.TempDir()},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.ReadFile(ctx, "example.com.pem")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, b.lastConnect.IsZero())

	data, err := b.ReadFile(context.Background(), "example.com.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("pile"), data)
}

func TestReadsPullWithoutRefreshRate(t *testing.T) {
	originDir, origin, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("v1"))

	var changed atomic.Value
	b := &Backend{}
	b.OnChange(func(version string) { changed.Store(version) })
	require.NoError(t, b.Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: originDir, Basedir: t.TempDir(), OnDemandRefreshMillis: 1},
	}))

	data, err := b.ReadFile(context.Background(), "example.com.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("v2"))
	head, err := origin.Head()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := b.ReadFile(context.Background(), "example.com.pem")
		return err == nil && string(data) == "v2"
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return changed.Load() == head.Hash().String()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestInitExpandsKnownHostsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "known_hosts"), nil, 0600))

	key := test.NewLeaf(t, "deploy", nil).PKCS8(t)

	b := &Backend{}
	require.NoError(t, b.Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: "git@example.com:certs.git", PrivateKey: string(key), KnownHostsFile: "~/.ssh/known_hosts"},
	}))
	assert.NotNil(t, b.PublicKeys)

	err := (&Backend{}).Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: "git@example.com:certs.git", PrivateKey: string(key), KnownHostsFile: "~/.ssh/missing"},
	})
	assert.Error(t, err)
}

func TestCloneOnStart(t *testing.T) {
	originDir, _, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("pile"))

	b := &Backend{}
	err := b.Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{
			Uri:          originDir,
			Basedir:      t.TempDir(),
			CloneOnStart: true,
		},
	})
	require.NoError(t, err)

	data, err := b.ReadFile(context.Background(), "example.com.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("pile"), data)
	assert.Equal(t, originDir, b.Location())
}

func TestOnChangeAfterPull(t *testing.T) {
	originDir, origin, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("v1"))

	var changes []string
	b := &Backend{}
	b.OnChange(func(version string) { changes = append(changes, version) })
	err := b.Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: originDir, Basedir: t.TempDir(), CloneOnStart: true},
	})
	require.NoError(t, err)
	assert.Empty(t, changes, "first clone is not a change")

	require.NoError(t, b.connect(context.Background(), false))
	assert.Empty(t, changes, "already up to date")

	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("v2"))
	require.NoError(t, b.connect(context.Background(), false))

	head, err := origin.Head()
	require.NoError(t, err)
	assert.Equal(t, []string{head.Hash().String()}, changes)

	data, err := b.ReadFile(context.Background(), "example.com.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}
