package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/clipslide/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index <album>",
	Short: "Create or update the embeddings index for an album",
	Long: `Index an album's image directories with CLIP embeddings.
An existing index is updated incrementally: images deleted from disk are
removed and only new images are embedded. Use --rebuild to index from
scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().Bool("rebuild", false, "Rebuild the index from scratch instead of updating")
}

func runIndex(cmd *cobra.Command, args []string) error {
	albumKey := args[0]
	rebuild, _ := cmd.Flags().GetBool("rebuild")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	snapshotPath, roots, err := resolveAlbum(cfg, albumKey)
	if err != nil {
		return err
	}
	svc := newService(cfg)

	var bar *progressbar.ProgressBar
	onProgress := func(processed, total int, step string) {
		if total == 0 {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Indexing images"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
			)
		}
		_ = bar.Set(processed)
	}

	_, statErr := os.Stat(snapshotPath)
	update := statErr == nil && !rebuild

	var result *index.Result
	if update {
		result, err = svc.UpdateIndex(cmd.Context(), snapshotPath, roots, onProgress)
	} else {
		result, err = svc.CreateIndex(cmd.Context(), snapshotPath, roots, onProgress)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Album %q: %d images indexed", albumKey, result.Len())
	if result.Removed > 0 {
		fmt.Printf(", %d removed", result.Removed)
	}
	fmt.Println()
	if len(result.Failures) > 0 {
		fmt.Printf("%d files failed to process:\n", len(result.Failures))
		for _, f := range result.Failures {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}
