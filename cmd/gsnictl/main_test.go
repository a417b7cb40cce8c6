package main

import (
	"bytes"
	"testing"

	"github.com/GlintPay/gsni/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLookup(t *testing.T) {
	ca := test.NewCA(t, "Test CA")
	dir := t.TempDir()
	test.WriteFile(t, dir, "example.com.pem", test.NewLeaf(t, "example.com", &ca).Pile(ca))

	leaf := test.NewLeaf(t, "dehydrated.example.com", nil)
	test.WriteFile(t, dir, "dehydrated.example.com/privkey.pem", leaf.KeyPEM)
	test.WriteFile(t, dir, "dehydrated.example.com/fullchain.pem", leaf.FullChain())

	challenge := test.NewLeaf(t, "challenge", nil)
	test.WriteFile(t, dir, "example.com.key.pem", challenge.KeyPEM)
	test.WriteFile(t, dir, "example.com.crt.pem", challenge.CertPEM)

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr string
	}{
		{
			name: "host",
			args: []string{"lookup", "--dir", dir, "EXAMPLE.com"},
			want: []string{"Subject:   CN=example.com", "Issuer:    CN=Test CA", "DNS names: example.com", "Chain:     1"},
		},
		{
			name: "dehydrated",
			args: []string{"lookup", "--layout", "dehydrated", "--dir", dir, "dehydrated.example.com"},
			want: []string{"Subject:   CN=dehydrated.example.com", "Chain:     0"},
		},
		{
			name: "dehydrated-acme",
			args: []string{"lookup", "--layout", "dehydrated-acme", "--dir", dir, "example.com"},
			want: []string{"Subject:   CN=challenge"},
		},
		{name: "missing", args: []string{"lookup", "--dir", dir, "nope.example.com"}, wantErr: "no certificate"},
		{name: "invalid", args: []string{"lookup", "--dir", dir, "../etc"}, wantErr: "invalid hostname"},
		{name: "unknown layout", args: []string{"lookup", "--layout", "certbot", "--dir", dir, "example.com"}, wantErr: "unknown layout"},
		{name: "no dir", args: []string{"lookup", "example.com"}, wantErr: "dir"},
		{name: "no hostname", args: []string{"lookup", "--dir", dir}, wantErr: "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestHostnames(t *testing.T) {
	dir := t.TempDir()
	test.WriteFile(t, dir, "b.example.com.pem", test.NewLeaf(t, "b.example.com", nil).Pile())
	test.WriteFile(t, dir, "a.example.com.pem", test.NewLeaf(t, "a.example.com", nil).Pile())
	test.WriteFile(t, dir, "README", []byte("not a certificate"))

	out, err := run("hostnames", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "a.example.com\nb.example.com\n", out)
}

func TestParse(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{endpoint: "tcp:443", want: "tcp::443\n"},
		{endpoint: "txsni:/etc/certs:tcp:443:interface=127.0.0.1", want: "/etc/certs on tcp:127.0.0.1:443\n  challenge certificates: true\n"},
		{endpoint: "txsni:/etc/certs", wantErr: true},
		{endpoint: "k8ssni:edge:tcp:443", wantErr: true},
		{endpoint: "bogus:1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			out, err := run("parse", tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}
