package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cxparchive/cxp/internal/archivemanager"
)

func newManagerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Operate the process-wide archive cache and global index",
	}
	cmd.AddCommand(newManagerServeCmd())
	return cmd
}

func newManagerServeCmd() *cobra.Command {
	var (
		storageRoot string
		maxMemory   int64
		maxCached   int
		preloadHot  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load storage-root's master archive and serve search queries from stdin",
		RunE: func(c *cobra.Command, args []string) error {
			mgrCfg := archivemanager.Config{
				MaxMemoryBytes:    maxMemory,
				MaxCachedArchives: maxCached,
				PreloadHot:        preloadHot,
			}
			mgr := archivemanager.New(storageRoot, mgrCfg)
			if err := mgr.Init(); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "cxp manager ready over %s (%d cached archives, %d bytes resident)\n",
				storageRoot, mgr.CachedCount(), mgr.CurrentMemory())
			fmt.Fprintln(os.Stderr, "enter a query per line, ctrl-d to exit")

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				query := strings.TrimSpace(scanner.Text())
				if query == "" {
					continue
				}
				for i, res := range mgr.Search(query, 10) {
					fmt.Printf("%d. [%s] %s (score %.3f)\n", i+1, strings.Join(res.Entry.ContainerPath, "/"), res.Entry.FilePath, res.Score)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&storageRoot, "storage-root", ".", "storage root containing master.cxp and master/children/*.cxpref reference files")
	cmd.Flags().Int64Var(&maxMemory, "max-memory-bytes", archivemanager.DefaultConfig().MaxMemoryBytes, "cache memory ceiling in bytes")
	cmd.Flags().IntVar(&maxCached, "max-cached-archives", archivemanager.DefaultConfig().MaxCachedArchives, "maximum cached archive count")
	cmd.Flags().BoolVar(&preloadHot, "preload-hot", archivemanager.DefaultConfig().PreloadHot, "preload every Hot-tier child at startup")

	return cmd
}
