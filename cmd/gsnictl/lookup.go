package main

import (
	"fmt"
	"strings"

	"github.com/GlintPay/gsni/backend/file"
	"github.com/GlintPay/gsni/certmap"
	"github.com/GlintPay/gsni/filetypes"
	"github.com/GlintPay/gsni/sops"
	"github.com/spf13/cobra"
)

var layouts = []string{"host", "dehydrated", "dehydrated-acme"}

type layoutFlags struct {
	layout string
	dir    string
	sops   bool
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.layout, "layout", "host", "directory layout: "+strings.Join(layouts, ", "))
	cmd.Flags().StringVar(&f.dir, "dir", "", "certificate directory")
	cmd.Flags().BoolVar(&f.sops, "sops", false, "decrypt sops-encrypted files")
	_ = cmd.MarkFlagRequired("dir")
}

func (f *layoutFlags) mapping() (certmap.Map, error) {
	var decrypter filetypes.Decrypter = filetypes.NoDecrypter{}
	if f.sops {
		decrypter = sops.Decrypter{}
	}
	storage := file.New(f.dir, decrypter)

	switch f.layout {
	case "host":
		return certmap.HostDirectory{Storage: storage}, nil
	case "dehydrated":
		return certmap.NewDehydrated(storage), nil
	case "dehydrated-acme":
		return certmap.NewDehydratedAcme(storage), nil
	}
	return nil, fmt.Errorf("unknown layout %q (known: %s)", f.layout, strings.Join(layouts, ", "))
}

func newLookupCmd() *cobra.Command {
	var flags layoutFlags

	cmd := &cobra.Command{
		Use:   "lookup HOSTNAME",
		Short: "Show the certificate that would be served for HOSTNAME",
		Long:  "Show the certificate that would be served for HOSTNAME. Use DEFAULT for clients that send no server name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.mapping()
			if err != nil {
				return err
			}

			cert, err := m.Certificate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			leaf := cert.Leaf
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Subject:   %s\n", leaf.Subject)
			_, _ = fmt.Fprintf(out, "Issuer:    %s\n", leaf.Issuer)
			_, _ = fmt.Fprintf(out, "DNS names: %s\n", strings.Join(leaf.DNSNames, ", "))
			_, _ = fmt.Fprintf(out, "Serial:    %s\n", leaf.SerialNumber.Text(16))
			_, _ = fmt.Fprintf(out, "Valid:     %s to %s\n", leaf.NotBefore.UTC().Format("2006-01-02T15:04:05Z"), leaf.NotAfter.UTC().Format("2006-01-02T15:04:05Z"))
			_, _ = fmt.Fprintf(out, "Chain:     %d\n", len(cert.Certificate)-1)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newHostnamesCmd() *cobra.Command {
	var flags layoutFlags

	cmd := &cobra.Command{
		Use:   "hostnames",
		Short: "List the hostnames a certificate directory holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := flags.mapping()
			if err != nil {
				return err
			}

			names, err := m.(certmap.Lister).Hostnames(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
