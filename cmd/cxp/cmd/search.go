package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cxparchive/cxp/internal/container"
	"github.com/cxparchive/cxp/internal/embedfn"
)

func newSearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <archive.cxp> <query...>",
		Short: "Run a semantic search against one archive's unified index",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			reader, err := container.Open(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			if !reader.HasEmbeddings() {
				return fmt.Errorf("%s has no embeddings: build with --embed first", args[0])
			}
			if err := reader.LoadEmbeddings(); err != nil {
				return err
			}
			if err := reader.LoadUnifiedIndex(); err != nil {
				return err
			}

			query := args[1]
			for _, w := range args[2:] {
				query += " " + w
			}

			encoder := embedfn.NewStaticTextEncoder()
			vectors, err := encoder.EmbedText(context.Background(), []string{query})
			if err != nil {
				return err
			}

			results, err := reader.SearchSemantic(vectors[0], k)
			if err != nil {
				return err
			}

			for i, res := range results {
				text, _ := reader.GetChunkText(res.ID)
				if len(text) > 120 {
					text = text[:120] + "..."
				}
				fmt.Printf("%d. id=%d distance=%.4f %s\n", i+1, res.ID, res.Distance, text)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&k, "k", 10, "number of results to return")
	return cmd
}
