package git

import (
	"sync"
	"time"

	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/filetypes"
	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

type Backend struct {
	Config      config.GitConfig
	Repo        *goGit.Repository
	PublicKeys  *ssh.PublicKeys
	Decrypter   filetypes.Decrypter
	EnableTrace bool

	repoLock    sync.Mutex
	connectLock sync.Mutex // held for clones and pulls; guards lastConnect and lastConnectErr

	lastConnect    time.Time
	lastConnectErr error

	versionLock sync.Mutex
	lastVersion string
	onChange    func(version string)
}

// OnChange registers f to be called after a pull moves HEAD
func (s *Backend) OnChange(f func(version string)) {
	s.versionLock.Lock()
	defer s.versionLock.Unlock()
	s.onChange = f
}

func (s *Backend) Order() int {
	return s.Config.Order
}

func (s *Backend) Location() string {
	return s.Config.Uri
}
