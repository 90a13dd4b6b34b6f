package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cxparchive/cxp/internal/container"
)

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <archive.cxp>",
		Short: "Print an archive's manifest summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			reader, err := container.Open(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			mf := reader.Manifest()
			fmt.Printf("path:              %s\n", reader.Path())
			fmt.Printf("tier:              %s\n", mf.Tier)
			fmt.Printf("created:           %s\n", mf.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("files:             %d\n", mf.Stats.TotalFiles)
			fmt.Printf("unique chunks:     %d\n", mf.Stats.UniqueChunks)
			fmt.Printf("original size:     %d bytes\n", mf.Stats.OriginalSize)
			fmt.Printf("archive size:      %d bytes\n", mf.Stats.ArchiveSize)
			fmt.Printf("compression ratio: %.2f\n", mf.Stats.CompressionRatio)
			fmt.Printf("dedup savings:     %.1f%%\n", mf.Stats.DedupSavingsPercent)
			fmt.Printf("has embeddings:    %t\n", reader.HasEmbeddings())
			if len(mf.Children.Order) > 0 {
				fmt.Printf("children:          %d\n", len(mf.Children.Order))
			}
			for _, ext := range reader.ListExtensions() {
				fmt.Printf("extension:         %s\n", ext)
			}
			return nil
		},
	}
	return cmd
}
