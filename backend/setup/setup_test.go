package setup

import (
	"context"
	"github.com/GlintPay/gsni/backend"
	"github.com/GlintPay/gsni/backend/file"
	"github.com/GlintPay/gsni/backend/git"
	"github.com/GlintPay/gsni/config"
	"github.com/GlintPay/gsni/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestInit(t *testing.T) {
	originDir, _, wt := test.NewGitRepo(t)
	test.WriteGitFile(t, originDir, wt, "example.com.pem", []byte("pile"))

	gitConfig := config.GitConfig{Uri: originDir, Basedir: t.TempDir(), CloneOnStart: true, Order: 2}
	fileConfig := config.FileConfig{Path: "/srv/certs", Order: 1}

	tests := []example{
		{
			name:      "default",
			appConfig: config.ApplicationConfiguration{},
			wantKinds: nil,
		},
		{
			name:      "both, file has priority",
			appConfig: config.ApplicationConfiguration{Git: gitConfig, File: fileConfig},
			wantKinds: []string{"file", "git"},
		},
		{
			name: "no-git",
			appConfig: config.ApplicationConfiguration{
				Git:  config.GitConfig{Disabled: true, Uri: originDir},
				File: fileConfig,
			},
			wantKinds: []string{"file"},
		},
		{
			name: "no-file",
			appConfig: config.ApplicationConfiguration{
				Git:  gitConfig,
				File: config.FileConfig{Disabled: true, Path: "/srv/certs"},
			},
			wantKinds: []string{"git"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			got, err := Init(context.Background(), tt.appConfig)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			assert.Equal(t, tt.wantKinds, kinds(got))
			assert.Equal(t, Git(got) != nil, contains(tt.wantKinds, "git"))
			assert.Equal(t, File(got) != nil, contains(tt.wantKinds, "file"))
		})
	}
}

func TestInitFailure(t *testing.T) {
	_, err := Init(context.Background(), config.ApplicationConfiguration{
		Git: config.GitConfig{Uri: "/does/not/exist", Basedir: t.TempDir(), CloneOnStart: true},
	})
	require.Error(t, err)
}

type example struct {
	name      string
	appConfig config.ApplicationConfiguration
	wantKinds []string
	wantErr   bool
}

func kinds(bs backend.Backends) []string {
	var out []string
	for _, each := range bs {
		switch each.(type) {
		case *git.Backend:
			out = append(out, "git")
		case *file.Backend:
			out = append(out, "file")
		}
	}
	return out
}

func contains(list []string, val string) bool {
	for _, each := range list {
		if each == val {
			return true
		}
	}
	return false
}
