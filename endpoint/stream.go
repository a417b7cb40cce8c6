package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// TCPEndpoint `tcp:PORT[:interface=ADDR][:backlog=N]`
type TCPEndpoint struct {
	Port      int    `endpoint:"port"`
	Interface string `endpoint:"interface"`
	Backlog   int    `endpoint:"backlog"`
}

func (e TCPEndpoint) Address() string {
	return net.JoinHostPort(e.Interface, strconv.Itoa(e.Port))
}

func (e TCPEndpoint) Listen(ctx context.Context) (net.Listener, error) {
	if e.Backlog > 0 {
		log.Debug().Int("backlog", e.Backlog).Msg("Listen backlog is set by the OS (somaxconn), ignoring")
	}

	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", e.Address())
}

func (e TCPEndpoint) String() string {
	return "tcp:" + e.Address()
}

type TCPParser struct{}

func (TCPParser) Prefix() string {
	return "tcp"
}

func (TCPParser) Parse(_ context.Context, _ *Registry, _ *Environment, desc Description) (Endpoint, error) {
	input := desc.KwargMap()
	if len(desc.Args) > 1 {
		return nil, fmt.Errorf("tcp endpoint: too many arguments %v", desc.Args)
	} else if len(desc.Args) == 1 {
		input["port"] = desc.Args[0]
	}

	var e TCPEndpoint
	if _, ok := input["port"]; !ok {
		return nil, errors.New("tcp endpoint: missing port")
	}
	if err := decodeKwargs(desc, input, &e); err != nil {
		return nil, err
	}
	if e.Port < 0 || e.Port > 65535 {
		return nil, fmt.Errorf("tcp endpoint: port %d out of range", e.Port)
	}
	return e, nil
}

// UnixEndpoint `unix:PATH[:mode=660][:lockfile=1]`
type UnixEndpoint struct {
	Address  string `endpoint:"address"`
	Mode     string `endpoint:"mode"` // octal
	Lockfile bool   `endpoint:"lockfile"`
}

func (e UnixEndpoint) Listen(ctx context.Context) (net.Listener, error) {
	if e.Lockfile {
		// A socket file left behind by a previous run would make the bind fail
		if err := os.Remove(e.Address); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", e.Address)
	if err != nil {
		return nil, err
	}

	if e.Mode != "" {
		mode, _ := strconv.ParseUint(e.Mode, 8, 32)
		if err = os.Chmod(e.Address, os.FileMode(mode)); err != nil {
			_ = listener.Close()
			return nil, err
		}
	}
	return listener, nil
}

func (e UnixEndpoint) String() string {
	return "unix:" + e.Address
}

type UnixParser struct{}

func (UnixParser) Prefix() string {
	return "unix"
}

func (UnixParser) Parse(_ context.Context, _ *Registry, _ *Environment, desc Description) (Endpoint, error) {
	input := desc.KwargMap()
	if len(desc.Args) > 1 {
		return nil, fmt.Errorf("unix endpoint: too many arguments %v", desc.Args)
	} else if len(desc.Args) == 1 {
		input["address"] = desc.Args[0]
	}

	var e UnixEndpoint
	if err := decodeKwargs(desc, input, &e); err != nil {
		return nil, err
	}
	if e.Address == "" {
		return nil, errors.New("unix endpoint: missing path")
	}
	if e.Mode != "" {
		if _, err := strconv.ParseUint(e.Mode, 8, 32); err != nil {
			return nil, fmt.Errorf("unix endpoint: mode %q is not octal", e.Mode)
		}
	}
	return e, nil
}
