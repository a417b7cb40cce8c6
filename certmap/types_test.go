package certmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
		wantErr  bool
	}{
		{hostname: "", want: DefaultHostname},
		{hostname: "DEFAULT", want: DefaultHostname},
		{hostname: "Example.COM", want: "example.com"},
		{hostname: "example.com.", want: "example.com"},
		{hostname: "xn--bcher-kva.example", want: "xn--bcher-kva.example"},
		{hostname: "*.example.com", want: "*.example.com"},
		{hostname: "under_score.example.com", want: "under_score.example.com"},
		{hostname: "..", wantErr: true},
		{hostname: "../etc/passwd", wantErr: true},
		{hostname: "a/b", wantErr: true},
		{hostname: `a\b`, wantErr: true},
		{hostname: "a..b", wantErr: true},
		{hostname: ".example.com", wantErr: true},
		{hostname: "exa mple.com", wantErr: true},
		{hostname: "a\x00b", wantErr: true},
		{hostname: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			got, err := Normalize(tt.hostname)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidHostname), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
