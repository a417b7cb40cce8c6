package filetypes

import (
	"errors"
	"testing"

	"github.com/GlintPay/gsni/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePile(t *testing.T) {
	ca := test.NewCA(t, "Test CA")
	leaf := test.NewLeaf(t, "example.com", &ca)
	rsaLeaf := test.NewRSALeaf(t, "rsa.example.com")

	tests := []struct {
		name       string
		pile       []byte
		wantCN     string
		wantChain  int
		wantErr    error
		wantAnyErr bool
	}{
		{
			name:      "key then leaf then chain",
			pile:      leaf.Pile(ca),
			wantCN:    "example.com",
			wantChain: 2,
		},
		{
			name:      "chain before leaf",
			pile:      concat(ca.CertPEM, leaf.KeyPEM, leaf.CertPEM),
			wantCN:    "example.com",
			wantChain: 2,
		},
		{
			name:      "pkcs8 key",
			pile:      concat(leaf.CertPEM, leaf.PKCS8(t)),
			wantCN:    "example.com",
			wantChain: 1,
		},
		{
			name:      "rsa pkcs1 key",
			pile:      rsaLeaf.Pile(),
			wantCN:    "rsa.example.com",
			wantChain: 1,
		},
		{
			name:      "unknown blocks skipped",
			pile:      concat([]byte("-----BEGIN DH PARAMETERS-----\nMAA=\n-----END DH PARAMETERS-----\n"), leaf.Pile()),
			wantCN:    "example.com",
			wantChain: 1,
		},
		{
			name:    "no key",
			pile:    leaf.FullChain(ca),
			wantErr: ErrNoPrivateKey,
		},
		{
			name:    "two keys",
			pile:    concat(leaf.KeyPEM, rsaLeaf.KeyPEM, leaf.CertPEM),
			wantErr: ErrMultiplePrivateKeys,
		},
		{
			name:    "key without its certificate",
			pile:    concat(leaf.KeyPEM, rsaLeaf.CertPEM),
			wantErr: ErrNoMatchingCertificate,
		},
		{
			name:    "empty",
			pile:    nil,
			wantErr: ErrNoPrivateKey,
		},
		{
			name:       "corrupt certificate",
			pile:       concat(leaf.KeyPEM, []byte("-----BEGIN CERTIFICATE-----\nMAA=\n-----END CERTIFICATE-----\n")),
			wantAnyErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePile(tt.pile)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			if tt.wantAnyErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCN, got.Leaf.Subject.CommonName)
			assert.Len(t, got.Certificate, tt.wantChain)
			assert.Equal(t, got.Leaf.Raw, got.Certificate[0])
		})
	}
}

func TestParseKeyAndChain(t *testing.T) {
	ca := test.NewCA(t, "Test CA")
	leaf := test.NewLeaf(t, "example.com", &ca)

	key := leaf.KeyPEM[:len(leaf.KeyPEM)-1] // no trailing newline

	got, err := ParseKeyAndChain(key, leaf.FullChain(ca))
	require.NoError(t, err)
	assert.Equal(t, "example.com", got.Leaf.Subject.CommonName)
	assert.Len(t, got.Certificate, 2)
}

func TestNoDecrypter(t *testing.T) {
	got, err := NoDecrypter{}.Decrypt([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
