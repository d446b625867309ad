package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ultrasearch/internal/ipcclient"
	"ultrasearch/internal/ipcproto"
)

var endpoint string

var rootCmd = &cobra.Command{
	Use:   "ultrasearch-cli",
	Short: "Query and manage a running ultrasearch-service",
	Long: `ultrasearch-cli connects to a local ultrasearch-service instance over
its IPC endpoint and issues search, status, and config requests.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "IPC endpoint override (named pipe path or socket path)")
}

// dial connects to the configured endpoint and completes the Hello
// handshake, dispatching to the platform-specific dialer.
func dial(ctx context.Context) (*ipcclient.Client, error) {
	addr := endpoint
	if addr == "" {
		addr = ipcproto.DefaultEndpoint()
	}
	return ipcclient.DialEndpoint(ctx, addr)
}
