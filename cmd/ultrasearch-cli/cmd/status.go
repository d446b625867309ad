package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ultrasearch/internal/ipcproto"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report per-volume and per-component health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := dial(ctx)
		if err != nil {
			return fmt.Errorf("connecting to ultrasearch-service: %w", err)
		}
		defer c.Close()

		resp, err := c.Call(&ipcproto.Request{ID: uuid.NewString(), Kind: ipcproto.RequestStatus})
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
		}

		st := resp.Status
		fmt.Printf("idle_state: %s\n", st.IdleState)
		fmt.Printf("meta_index_ok: %v\n", st.MetaIndexOK)
		fmt.Printf("content_index_ok: %v\n", st.ContentIndexOK)
		fmt.Printf("pending_jobs: critical_update=%d metadata_rebuild=%d content_batch=%d\n",
			st.PendingJobs.CriticalUpdate, st.PendingJobs.MetadataRebuild, st.PendingJobs.ContentBatch)
		for _, v := range st.Volumes {
			fmt.Printf("volume %d %s: healthy=%v generation=%d last_usn=%d\n",
				v.VolumeID, v.GUIDPath, v.Healthy, v.LastGeneration, v.LastUsn)
			if !v.Healthy {
				fmt.Printf("  reason: %s\n", v.UnhealthyReason)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
