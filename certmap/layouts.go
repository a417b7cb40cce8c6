package certmap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/filetypes"
)

const (
	pemSuffix   = ".pem"
	crtSuffix   = ".crt.pem"
	keySuffix   = ".key.pem"
	DefaultKey  = "privkey.pem"
	DefaultFull = "fullchain.pem"
)

// HostDirectory One `<hostname>.pem` pile per host
type HostDirectory struct {
	Storage Storage
}

func (m HostDirectory) Certificate(ctx context.Context, hostname string) (*tls.Certificate, error) {
	host, err := Normalize(hostname)
	if err != nil {
		return nil, err
	}

	name := host + pemSuffix
	if ok, e := m.Storage.IsFile(ctx, name); e != nil {
		return nil, e
	} else if !ok {
		return nil, notFound("pem file", host)
	}

	data, err := read(ctx, m.Storage, host, name)
	if err != nil {
		return nil, err
	}

	cert, err := filetypes.ParsePile(data)
	return parsed(host, cert, err)
}

func (m HostDirectory) Hostnames(ctx context.Context) ([]string, error) {
	names, err := list(ctx, m.Storage)
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, name := range names {
		if strings.HasSuffix(name, pemSuffix) {
			hosts = append(hosts, strings.TrimSuffix(name, pemSuffix))
		}
	}
	return hosts, nil
}

// PerHostnameDirectory `<hostname>/<KeyName>` and `<hostname>/<ChainName>`, as dehydrated and certbot write them
type PerHostnameDirectory struct {
	Storage   Storage
	KeyName   string
	ChainName string
}

// NewDehydrated dehydrated's certs/ directory
func NewDehydrated(storage Storage) PerHostnameDirectory {
	return PerHostnameDirectory{Storage: storage, KeyName: DefaultKey, ChainName: DefaultFull}
}

func (m PerHostnameDirectory) names() (string, string) {
	keyName, chainName := m.KeyName, m.ChainName
	if keyName == "" {
		keyName = DefaultKey
	}
	if chainName == "" {
		chainName = DefaultFull
	}
	return keyName, chainName
}

func (m PerHostnameDirectory) Certificate(ctx context.Context, hostname string) (*tls.Certificate, error) {
	host, err := Normalize(hostname)
	if err != nil {
		return nil, err
	}

	keyName, chainName := m.names()
	return readPair(ctx, m.Storage, host, path.Join(host, keyName), path.Join(host, chainName))
}

func (m PerHostnameDirectory) Hostnames(ctx context.Context) ([]string, error) {
	names, err := list(ctx, m.Storage)
	if err != nil {
		return nil, err
	}

	keyName, _ := m.names()

	var hosts []string
	for _, name := range names {
		if ok, e := m.Storage.IsFile(ctx, path.Join(name, keyName)); e == nil && ok {
			hosts = append(hosts, name)
		}
	}
	return hosts, nil
}

// PerHostnameFiles `<hostname>.key.pem` and `<hostname>.crt.pem` side by side
type PerHostnameFiles struct {
	Storage Storage
}

// NewDehydratedAcme dehydrated's alpn-certs/ directory of tls-alpn-01 challenge certificates
func NewDehydratedAcme(storage Storage) PerHostnameFiles {
	return PerHostnameFiles{Storage: storage}
}

func (m PerHostnameFiles) Certificate(ctx context.Context, hostname string) (*tls.Certificate, error) {
	host, err := Normalize(hostname)
	if err != nil {
		return nil, err
	}
	return readPair(ctx, m.Storage, host, host+keySuffix, host+crtSuffix)
}

func (m PerHostnameFiles) Hostnames(ctx context.Context) ([]string, error) {
	names, err := list(ctx, m.Storage)
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, name := range names {
		if strings.HasSuffix(name, crtSuffix) {
			hosts = append(hosts, strings.TrimSuffix(name, crtSuffix))
		}
	}
	return hosts, nil
}

func readPair(ctx context.Context, storage Storage, host string, keyName string, chainName string) (*tls.Certificate, error) {
	for _, name := range []string{keyName, chainName} {
		if ok, err := storage.IsFile(ctx, name); err != nil {
			return nil, err
		} else if !ok {
			return nil, notFound("pem files", host)
		}
	}

	key, err := read(ctx, storage, host, keyName)
	if err != nil {
		return nil, err
	}
	chain, err := read(ctx, storage, host, chainName)
	if err != nil {
		return nil, err
	}

	cert, err := filetypes.ParseKeyAndChain(key, chain)
	return parsed(host, cert, err)
}

// read treats a file vanishing after IsFile as a miss
func read(ctx context.Context, storage Storage, host string, name string) ([]byte, error) {
	data, err := storage.ReadFile(ctx, name)
	if errors.Is(err, backend.ErrNotExist) {
		return nil, notFound("pem file", host)
	}
	return data, err
}

func parsed(host string, cert *tls.Certificate, err error) (*tls.Certificate, error) {
	if err != nil {
		return nil, fmt.Errorf("certificate for %s: %w", host, err)
	}
	return cert, nil
}

func list(ctx context.Context, storage Storage) ([]string, error) {
	lister, ok := storage.(backend.Lister)
	if !ok {
		return nil, fmt.Errorf("storage %T cannot list certificates", storage)
	}

	names, err := lister.List(ctx, "")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
