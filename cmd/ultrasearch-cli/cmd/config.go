package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ultrasearch/internal/ipcproto"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or write the running service's configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a single dotted config key (e.g. scheduler.content_batch_size)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := dial(ctx)
		if err != nil {
			return fmt.Errorf("connecting to ultrasearch-service: %w", err)
		}
		defer c.Close()

		resp, err := c.Call(&ipcproto.Request{
			ID:        uuid.NewString(),
			Kind:      ipcproto.RequestConfigGet,
			ConfigGet: &ipcproto.ConfigGetRequest{Key: args[0]},
		})
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
		}
		if !resp.ConfigGet.Found {
			return fmt.Errorf("unrecognized key %q", args[0])
		}
		fmt.Println(resp.ConfigGet.Value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Queue a config override, applied on the service's next reload cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := dial(ctx)
		if err != nil {
			return fmt.Errorf("connecting to ultrasearch-service: %w", err)
		}
		defer c.Close()

		resp, err := c.Call(&ipcproto.Request{
			ID:        uuid.NewString(),
			Kind:      ipcproto.RequestConfigSet,
			ConfigSet: &ipcproto.ConfigSetRequest{Key: args[0], Value: args[1]},
		})
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
		}
		fmt.Println("queued; applied on the next reload cycle")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
