package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cxparchive/cxp/internal/container"
	"github.com/cxparchive/cxp/internal/embedfn"
	"github.com/cxparchive/cxp/internal/globalindex"
	"github.com/cxparchive/cxp/internal/progressui"
	"github.com/cxparchive/cxp/internal/recursivebuilder"
)

func newBuildCmd() *cobra.Command {
	var (
		output     string
		withImages bool
		withEmbed  bool
		recursive  bool
		minSize    int64
		minFiles   int
		maxDepth   int
	)

	cmd := &cobra.Command{
		Use:   "build <source-dir>",
		Short: "Build an archive (or archive hierarchy) from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			source := args[0]
			if output == "" {
				output = filepath.Base(filepath.Clean(source)) + ".cxp"
			}

			var reporter progressui.Reporter
			if flagNoTUI {
				reporter = progressui.NewForced(os.Stderr)
			} else {
				reporter = progressui.New(os.Stderr)
			}

			start := time.Now()
			if recursive {
				rbCfg := recursivebuilder.Config{
					MinSizeForChild:  minSize,
					MinFilesForChild: minFiles,
					MaxDepth:         maxDepth,
					IgnoredDirs:      recursivebuilder.DefaultConfig().IgnoredDirs,
				}
				n, err := buildRecursive(c.Context(), source, output, rbCfg, withImages, withEmbed, reporter)
				if err != nil {
					return err
				}
				reporter.Finish(progressui.Summary{Archives: n, Duration: time.Since(start)})
				return nil
			}

			files, chunks, err := buildSingle(c.Context(), source, output, withImages, withEmbed, reporter)
			if err != nil {
				return err
			}
			reporter.Finish(progressui.Summary{Archives: 1, Files: files, Chunks: chunks, Duration: time.Since(start)})
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output .cxp path (single) or storage root (recursive)")
	cmd.Flags().BoolVar(&withImages, "images", false, "retain and embed image files")
	cmd.Flags().BoolVar(&withEmbed, "embed", false, "generate embeddings with the static encoder")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "nominate large subdirectories as independent child archives")
	cmd.Flags().Int64Var(&minSize, "min-size", recursivebuilder.DefaultConfig().MinSizeForChild, "minimum directory size (bytes) to nominate a child archive")
	cmd.Flags().IntVar(&minFiles, "min-files", recursivebuilder.DefaultConfig().MinFilesForChild, "minimum file count to nominate a child archive")
	cmd.Flags().IntVar(&maxDepth, "max-depth", recursivebuilder.DefaultConfig().MaxDepth, "maximum nomination depth")

	return cmd
}

func buildSingle(ctx context.Context, source, output string, withImages, withEmbed bool, reporter progressui.Reporter) (int, int, error) {
	w := container.New(source).WithConfig(cfg)
	if withImages {
		w = w.WithImages()
	}
	if withEmbed {
		w = w.WithEmbeddings(embedfn.NewStaticTextEncoder())
		if withImages {
			w = w.WithMultimodalEmbeddings(embedfn.NewStaticTextEncoder(), embedfn.NewStaticImageEncoder())
		}
	}

	reporter.Update(progressui.Event{Stage: progressui.StageScan, Detail: source})
	retained, err := w.Scan()
	if err != nil {
		return 0, 0, err
	}

	reporter.Update(progressui.Event{Stage: progressui.StageChunk, Total: len(retained)})
	if err := w.Process(retained); err != nil {
		return 0, 0, err
	}

	if withEmbed {
		reporter.Update(progressui.Event{Stage: progressui.StageEmbed})
		if err := w.GenerateEmbeddings(ctx); err != nil {
			return 0, 0, err
		}
	}

	reporter.Update(progressui.Event{Stage: progressui.StageIndex, Detail: output})
	if err := w.Build(ctx, output); err != nil {
		return 0, 0, err
	}
	return len(retained), 0, nil
}

func buildRecursive(ctx context.Context, source, storageRoot string, rbCfg recursivebuilder.Config, withImages, withEmbed bool, reporter progressui.Reporter) (int, error) {
	if withEmbed {
		reporter.Warn("--embed has no effect with --recursive; build each child directly to add embeddings")
	}

	builder := recursivebuilder.New(rbCfg).WithConfig(cfg)
	if withImages {
		builder = builder.WithImages()
	}

	reporter.Update(progressui.Event{Stage: progressui.StageScan, Detail: "analyzing " + source})
	proposal, err := builder.Analyze(source)
	if err != nil {
		return 0, err
	}

	childrenDir := filepath.Join(storageRoot, "children")
	if err := os.MkdirAll(childrenDir, 0o755); err != nil {
		return 0, err
	}

	results, err := builder.Build(ctx, source, childrenDir, proposal, nil)
	if err != nil {
		return 0, err
	}
	reporter.Update(progressui.Event{Stage: progressui.StageChunk, Current: len(results), Total: len(results)})

	idx := globalindex.New()
	for i, res := range results {
		reader, openErr := container.Open(res.ArchivePath)
		if openErr != nil {
			reporter.Warn(fmt.Sprintf("open %s: %v", res.ArchivePath, openErr))
			continue
		}
		entries := globalindex.EntriesFromFileMap(reader.FileMap(), reader.Manifest(), res.PathSegments, res.Ref.ID)
		idx.IngestContainer(entries)
		_ = reader.Close()
		reporter.Update(progressui.Event{Stage: progressui.StageIndex, Current: i + 1, Total: len(results)})
	}

	masterPath := filepath.Join(storageRoot, "master.cxp")
	if err := recursivebuilder.BuildMaster(ctx, masterPath, results, idx); err != nil {
		return 0, err
	}
	return len(results), nil
}
