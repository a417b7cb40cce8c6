// Package endpoint turns endpoint strings such as `txsni:/etc/certs:tcp:443` into listeners.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Endpoint something that can be listened on
type Endpoint interface {
	Listen(ctx context.Context) (net.Listener, error)
	String() string
}

// Parser builds an Endpoint for one prefix
type Parser interface {
	Prefix() string
	Parse(ctx context.Context, reg *Registry, env *Environment, desc Description) (Endpoint, error)
}

// Registry parsers by prefix
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	reg := &Registry{parsers: make(map[string]Parser)}
	for _, p := range parsers {
		reg.Register(p)
	}
	return reg
}

// DefaultRegistry every built-in endpoint type
func DefaultRegistry() *Registry {
	return NewRegistry(
		TCPParser{},
		UnixParser{},
		SNIDirectoryParser{},
		AcmeSNIParser{},
		GitSNIParser{},
		KubernetesSNIParser{},
	)
}

func (r *Registry) Register(p Parser) {
	r.parsers[strings.ToLower(p.Prefix())] = p
}

func (r *Registry) Prefixes() []string {
	prefixes := make([]string, 0, len(r.parsers))
	for p := range r.parsers {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Parse an endpoint string; wrapping endpoints parse their sub-endpoint through the same registry
func (r *Registry) Parse(ctx context.Context, description string, env *Environment) (Endpoint, error) {
	desc, err := ParseDescription(description)
	if err != nil {
		return nil, err
	}

	parser, ok := r.parsers[strings.ToLower(desc.Prefix)]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint type %q (known: %s)", desc.Prefix, strings.Join(r.Prefixes(), ", "))
	}

	if env == nil {
		env = &Environment{}
	}
	return parser.Parse(ctx, r, env, desc)
}

// Parse with the default registry
func Parse(ctx context.Context, description string, env *Environment) (Endpoint, error) {
	return DefaultRegistry().Parse(ctx, description, env)
}

// decodeKwargs fills a tagged options struct, rejecting unknown keys
func decodeKwargs(desc Description, input map[string]any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "endpoint",
		Result:           output,
	})
	if err != nil {
		return err
	}

	if err = decoder.Decode(input); err != nil {
		return fmt.Errorf("%s endpoint: %w", desc.Prefix, err)
	}
	return nil
}
