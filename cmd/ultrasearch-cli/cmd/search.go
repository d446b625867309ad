package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ultrasearch/internal/ipcproto"
	"ultrasearch/internal/query"
)

var (
	searchMode     string
	searchLimit    int
	searchOffset   int
	searchDeadline time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the metadata and content indices",
	Long: `Search for files by name, path, extension, or content.

Bare words match name/path (or name/content in content mode); field:value
tokens target a specific field (name, path, ext, content, lang); a
trailing * requests a prefix match.

Examples:
  ultrasearch-cli search invoice
  ultrasearch-cli search ext:pdf invoice*
  ultrasearch-cli search --mode content "quarterly revenue"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr := query.ParseText(strings.Join(args, " "))

		mode := query.Mode(searchMode)
		switch mode {
		case query.ModeNameOnly, query.ModeContent, query.ModeHybrid, query.ModeAuto:
		default:
			return fmt.Errorf("unrecognized --mode %q (want name_only|content|hybrid|auto)", searchMode)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := dial(ctx)
		if err != nil {
			return fmt.Errorf("connecting to ultrasearch-service: %w", err)
		}
		defer c.Close()

		resp, err := c.Call(&ipcproto.Request{
			ID:   uuid.NewString(),
			Kind: ipcproto.RequestSearch,
			Search: &ipcproto.SearchRequest{
				Query:      expr,
				Mode:       mode,
				Limit:      searchLimit,
				Offset:     searchOffset,
				DeadlineMs: searchDeadline.Milliseconds(),
			},
		})
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
		}

		hits := resp.Search.Hits
		if len(hits) == 0 {
			fmt.Printf("No results found (total matches: %d)\n", resp.Search.Total)
			return nil
		}
		for i, h := range hits {
			fmt.Printf("%d. %s (%.2f)\n   %s\n", i+1+searchOffset, h.Name, h.Score, h.Path)
			if h.Snippet != "" {
				fmt.Printf("   %s\n", h.Snippet)
			}
		}
		fmt.Printf("(%d of %d total matches)\n", len(hits), resp.Search.Total)
		if resp.Search.TimedOut {
			fmt.Println("(timed out, results may be partial)")
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", string(query.ModeAuto), "name_only|content|hybrid|auto")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset")
	searchCmd.Flags().DurationVar(&searchDeadline, "deadline", 2*time.Second, "per-request timeout")
	rootCmd.AddCommand(searchCmd)
}
