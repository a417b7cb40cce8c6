package setup

import (
	"context"
	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/backend/file"
	"github.com/GlintPay/gsni/backend/git"
	"github.com/GlintPay/gsni/config"
	"github.com/rs/zerolog/log"
)

// Init builds and initialises the enabled backends, highest priority first
func Init(ctx context.Context, appConfig config.ApplicationConfiguration) (backend.Backends, error) {
	var backends backend.Backends

	if appConfig.Git.Disabled || appConfig.Git.Uri == "" {
		log.Info().Msg("Git backend is disabled")
	} else {
		log.Info().Msg("Enabling Git backend")
		backends = append(backends, &git.Backend{})
	}

	if appConfig.File.Disabled || appConfig.File.Path == "" {
		log.Info().Msg("File backend is disabled")
	} else {
		log.Info().Msg("Enabling File backend")
		backends = append(backends, &file.Backend{})
	}

	for _, each := range backends {
		if backendErr := each.Init(ctx, appConfig); backendErr != nil {
			return nil, backendErr
		}
	}

	return backends.Sorted(), nil
}

// Git returns the git backend, if enabled
func Git(backends backend.Backends) *git.Backend {
	for _, each := range backends {
		if g, ok := each.(*git.Backend); ok {
			return g
		}
	}
	return nil
}

// File returns the file backend, if enabled
func File(backends backend.Backends) *file.Backend {
	for _, each := range backends {
		if f, ok := each.(*file.Backend); ok {
			return f
		}
	}
	return nil
}
