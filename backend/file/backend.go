package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/filetypes"
	"github.com/GlintPay/gsni/sops"
	"github.com/GlintPay/gsni/utils"
	"github.com/rs/zerolog/log"
)

// New A backend rooted at dir, used directly by endpoint strings
func New(dir string, decrypter filetypes.Decrypter) *Backend {
	return &Backend{
		Config:    config.FileConfig{Path: utils.ExpandUser(dir)},
		Decrypter: decrypter,
	}
}

func (s *Backend) Init(_ context.Context, appConfig config.ApplicationConfiguration) error {
	s.Config = appConfig.File
	s.Config.Path = utils.ExpandUser(s.Config.Path)
	if appConfig.Sops.Enabled {
		s.Decrypter = sops.Decrypter{}
	}
	log.Debug().Msgf("Reading certificates from %s", s.Config.Path)
	return nil
}

// Sub A backend rooted at a subdirectory, sharing the decrypter
func (s *Backend) Sub(dir string) *Backend {
	sub := *s
	sub.Config.Path = filepath.Join(s.Config.Path, filepath.FromSlash(dir))
	return &sub
}

func (s *Backend) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, backend.ErrNotExist)
	} else if err != nil {
		return nil, err
	}

	if s.Decrypter == nil {
		return data, nil
	}
	return s.Decrypter.Decrypt(data)
}

func (s *Backend) IsFile(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p, err := s.resolve(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// List names of the entries directly inside dir
func (s *Backend) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, d := range entries {
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Backend) Close() {
	// NOOP
}

func (s *Backend) resolve(name string) (string, error) {
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) || strings.Contains(name, "\\") {
		return "", fmt.Errorf("illegal file name %q", name)
	}
	return filepath.Join(s.Config.Path, filepath.FromSlash(name)), nil
}
