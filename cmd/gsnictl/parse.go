package main

import (
	"fmt"

	"github.com/GlintPay/gsni/endpoint"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse ENDPOINT",
		Short: "Check an endpoint string such as txsni:/etc/certs:tcp:443",
		Long: `Check an endpoint string such as txsni:/etc/certs:tcp:443.

gitsni and k8ssni endpoints need a running server's git and kubernetes configuration and cannot be checked here.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := endpoint.Parse(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), e)
			if tlsEndpoint, ok := e.(*endpoint.TLSEndpoint); ok {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  challenge certificates: %t\n", tlsEndpoint.SNI.AcmeMapping != nil)
			}
			return nil
		},
	}
}
