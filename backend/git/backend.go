package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"codnect.io/chrono"
	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/config"
	gotel "github.com/GlintPay/gsni/otel"
	"github.com/GlintPay/gsni/sops"
	"github.com/GlintPay/gsni/utils"
	goGit "github.com/go-git/go-git/v5"
	goGitConfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/rs/zerolog/log"
)

// defaultOnDemandRefresh how often reads trigger a pull when no refresh rate is configured
const defaultOnDemandRefresh = 30 * time.Second

func (s *Backend) Init(ctxt context.Context, config config.ApplicationConfiguration) error {
	s.Config = config.Git
	s.EnableTrace = config.Tracing.Enabled

	if config.Sops.Enabled {
		s.Decrypter = sops.Decrypter{}
	}

	if s.Config.PrivateKey != "" {
		hostKeyCallback, err := ssh.NewKnownHostsCallback(utils.ExpandUser(s.Config.KnownHostsFile))
		if err != nil {
			return err
		}

		s.PublicKeys, err = ssh.NewPublicKeys("git", []byte(strings.TrimSpace(s.Config.PrivateKey)), "")
		if err != nil {
			return err
		}

		s.PublicKeys.HostKeyCallback = hostKeyCallback
	}

	if s.Config.CloneOnStart {
		log.Debug().Msg("Clone on startup...")

		if e := s.connect(ctxt, !s.Config.DisableBaseDirCleaning); e != nil {
			return e
		}
	} else {
		log.Debug().Msg("Cloning on first read")
	}

	if s.Config.RefreshRateMillis > 0 {
		scheduler := chrono.NewDefaultTaskScheduler()

		period := time.Duration(s.Config.RefreshRateMillis) * time.Millisecond
		log.Info().Msgf("Scheduling pull every %v", period)

		_, err := scheduler.ScheduleAtFixedRate(func(ctx context.Context) {
			if e := s.connect(ctxt, false); e != nil {
				log.Error().Err(e).Msgf("Connect failed")
			}
		}, period)

		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Backend) connect(ctxt context.Context, cleanExisting bool) error {
	s.connectLock.Lock()
	defer s.connectLock.Unlock()
	return s.connectLocked(ctxt, cleanExisting)
}

// connectLocked clones or pulls; callers hold connectLock
func (s *Backend) connectLocked(ctxt context.Context, cleanExisting bool) error {
	s.lastConnect = time.Now()

	if cleanExisting {
		if e := s.cleanRepo(); e != nil {
			return e
		}
	}

	repo, err := goGit.PlainOpen(s.Config.Basedir)

	branch := s.Config.DefaultBranchName
	if branch == "" {
		branch = "master"
	}
	ref := plumbing.ReferenceName("refs/heads/" + branch)

	if errors.Is(err, goGit.ErrRepositoryNotExists) {
		_, end := gotel.StartSpan(ctxt, s.EnableTrace, "git-clone")
		defer end()

		repo, err = goGit.PlainCloneContext(ctxt, s.Config.Basedir, false, s.getCloneOptions(ref))
		if err != nil {
			return err
		}

		log.Debug().Msgf("Cloned [%s] OK", branch)
	} else if err != nil {
		return err
	} else {
		w, err := repo.Worktree()
		if err != nil {
			return err
		}

		head, err := repo.Head()
		if err == nil && head.Name() != ref {
			if err = s.checkout(repo, w, branch, ref); err != nil {
				return err
			}
		}

		_, end := gotel.StartSpan(ctxt, s.EnableTrace, "git-pull")
		defer end()

		err = w.PullContext(ctxt, s.getPullOptions(ref))
		if err != nil && !errors.Is(err, goGit.NoErrAlreadyUpToDate) {
			return err
		}

		if s.Config.ForcePull {
			log.Debug().Msgf("Pulled OK (with force)")
		} else {
			log.Debug().Msgf("Pulled OK")
		}
	}

	s.repoLock.Lock()
	s.Repo = repo
	s.repoLock.Unlock()

	s.notifyIfChanged()
	return nil
}

func (s *Backend) notifyIfChanged() {
	version, err := s.Version()
	if err != nil {
		return
	}

	s.versionLock.Lock()
	previous := s.lastVersion
	s.lastVersion = version
	onChange := s.onChange
	s.versionLock.Unlock()

	if version == previous {
		return
	}

	log.Info().Msgf("Certificates at commit %s", version)
	if previous != "" && onChange != nil {
		onChange(version)
	}
}

func (s *Backend) getCloneOptions(ref plumbing.ReferenceName) *goGit.CloneOptions {
	cloneOpts := &goGit.CloneOptions{
		ReferenceName: ref,
		URL:           s.Config.Uri,
		SingleBranch:  true,
	}

	if s.PublicKeys != nil {
		cloneOpts.Auth = s.PublicKeys
	}
	if s.Config.ShowProgress {
		cloneOpts.Progress = os.Stdout
	}

	return cloneOpts
}

func (s *Backend) getPullOptions(ref plumbing.ReferenceName) *goGit.PullOptions {
	po := &goGit.PullOptions{
		ReferenceName: ref,
	}

	if s.PublicKeys != nil {
		po.Auth = s.PublicKeys
	}
	if s.Config.ShowProgress {
		po.Progress = os.Stdout
	}
	if s.Config.ForcePull {
		po.Force = true
	}

	return po
}

func (s *Backend) checkout(repo *goGit.Repository, w *goGit.Worktree, branch string, ref plumbing.ReferenceName) error {
	coOpts := &goGit.CheckoutOptions{
		Branch: ref,
	}

	err := w.Checkout(coOpts)
	if err == nil {
		log.Debug().Msgf("Checked out local [%s] OK", branch)
		return nil
	}

	mirrorRemoteBranchRefSpec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	if err = s.fetchOrigin(repo, mirrorRemoteBranchRefSpec); err != nil {
		return err
	}

	if err = w.Checkout(coOpts); err != nil {
		return err
	}

	log.Debug().Msgf("Checked out remote [%s] OK", branch)
	return nil
}

func (s *Backend) fetchOrigin(repo *goGit.Repository, refSpecStr string) error {
	remote, err := repo.Remote("origin")
	if err != nil {
		return err
	}

	fo := &goGit.FetchOptions{
		RefSpecs: []goGitConfig.RefSpec{goGitConfig.RefSpec(refSpecStr)},
	}

	if s.Config.ShowProgress {
		fo.Progress = os.Stdout
	}
	if s.PublicKeys != nil {
		fo.Auth = s.PublicKeys
	}

	if err = remote.Fetch(fo); err != nil {
		if errors.Is(err, goGit.NoErrAlreadyUpToDate) {
			log.Debug().Msgf("refs already up to date")
		} else {
			return fmt.Errorf("fetch origin failed: %w", err)
		}
	}

	return nil
}

func (s *Backend) cleanRepo() error {
	if s.Config.Basedir == "" {
		return nil
	}
	log.Debug().Msg("Cleaning existing...")
	return os.RemoveAll(s.Config.Basedir)
}

// withHead runs f against the HEAD commit.
// Object access is serialised: go-git's packfile index is not safe for concurrent reads
// (`concurrent map writes` in idxfile.(*MemoryIndex).genOffsetHash).
func (s *Backend) withHead(ctx context.Context, f func(commit *object.Commit) error) error {
	if err := s.ensureRepo(ctx); err != nil {
		return err
	}

	s.repoLock.Lock()
	defer s.repoLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	ref, err := s.Repo.Head()
	if err != nil {
		return err
	}

	commit, err := s.Repo.CommitObject(ref.Hash())
	if err != nil {
		return err
	}
	return f(commit)
}

func (s *Backend) current() *goGit.Repository {
	s.repoLock.Lock()
	defer s.repoLock.Unlock()
	return s.Repo
}

// ensureRepo clones on first use, and otherwise keeps HEAD fresh when no refresh rate is scheduled
func (s *Backend) ensureRepo(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.current() != nil {
		s.refreshInBackground()
		return nil
	}
	if s.Config.Uri == "" {
		return errors.New("git repository is not configured")
	}

	s.connectLock.Lock()
	defer s.connectLock.Unlock()

	if s.current() != nil {
		return nil
	}
	if s.lastConnectErr != nil && time.Since(s.lastConnect) < s.onDemandInterval() {
		return fmt.Errorf("git repository not cloned yet: %w", s.lastConnectErr)
	}

	log.Info().Msgf("Cloning %s on first read", s.Config.Uri)
	err := s.connectLocked(ctx, !s.Config.DisableBaseDirCleaning)
	if ctx.Err() == nil {
		// a clone cut short by the caller's deadline is retried by the next read
		s.lastConnectErr = err
	}
	return err
}

// refreshInBackground pulls at most once per onDemandInterval, never blocking the read that triggered it
func (s *Backend) refreshInBackground() {
	if s.Config.Uri == "" || s.Config.RefreshRateMillis > 0 {
		return
	}
	if !s.connectLock.TryLock() {
		return
	}
	if time.Since(s.lastConnect) < s.onDemandInterval() {
		s.connectLock.Unlock()
		return
	}

	go func() {
		defer s.connectLock.Unlock()
		if e := s.connectLocked(context.Background(), false); e != nil {
			log.Error().Err(e).Msgf("Pull failed")
		}
	}()
}

func (s *Backend) onDemandInterval() time.Duration {
	if s.Config.OnDemandRefreshMillis > 0 {
		return time.Duration(s.Config.OnDemandRefreshMillis) * time.Millisecond
	}
	return defaultOnDemandRefresh
}

// Version hash of the commit certificates are currently read from
func (s *Backend) Version() (string, error) {
	var version string
	err := s.withHead(context.Background(), func(commit *object.Commit) error {
		version = commit.Hash.String()
		return nil
	})
	return version, err
}

func (s *Backend) qualify(name string) string {
	return path.Join(s.Config.SearchPath, name)
}

func (s *Backend) ReadFile(ctxt context.Context, name string) ([]byte, error) {
	_, end := gotel.StartSpan(ctxt, s.EnableTrace, "git-read")
	defer end()

	var data []byte
	err := s.withHead(ctxt, func(commit *object.Commit) error {
		f, err := commit.File(s.qualify(name))
		if errors.Is(err, object.ErrFileNotFound) {
			return fmt.Errorf("%s: %w", name, backend.ErrNotExist)
		} else if err != nil {
			return err
		}

		contents, err := f.Contents()
		if err != nil {
			return err
		}
		data = []byte(contents)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Decrypter == nil {
		return data, nil
	}
	return s.Decrypter.Decrypt(data)
}

func (s *Backend) IsFile(ctx context.Context, name string) (bool, error) {
	found := false
	err := s.withHead(ctx, func(commit *object.Commit) error {
		_, err := commit.File(s.qualify(name))
		if errors.Is(err, object.ErrFileNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// List names of entries directly inside dir
func (s *Backend) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := s.withHead(ctx, func(commit *object.Commit) error {
		tree, err := commit.Tree()
		if err != nil {
			return err
		}

		qualified := strings.Trim(s.qualify(dir), "/")
		if qualified != "" && qualified != "." {
			tree, err = tree.Tree(qualified)
			if errors.Is(err, object.ErrDirectoryNotFound) {
				return nil
			} else if err != nil {
				return err
			}
		}

		for _, entry := range tree.Entries {
			names = append(names, entry.Name)
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

func (s *Backend) Close() {
	// NOOP
}
