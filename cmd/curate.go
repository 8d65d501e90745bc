package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/clipslide/internal/curation"
)

var curateCmd = &cobra.Command{
	Use:   "curate <album>",
	Short: "Select a representative image subset for training sets",
	Long: `Select a representative subset of an album's images using
farthest-point sampling (default) or k-means on the stored embeddings.
With --export the selected files are copied into the output folder.`,
	Args: cobra.ExactArgs(1),
	RunE: runCurate,
}

func init() {
	rootCmd.AddCommand(curateCmd)
	curateCmd.Flags().Int("count", 100, "Number of images to select")
	curateCmd.Flags().String("method", "fps", "Selection method: fps or kmeans")
	curateCmd.Flags().Int64("seed", 42, "Random seed for deterministic selection")
	curateCmd.Flags().String("export", "", "Copy selected files into this folder")
}

func runCurate(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	method, _ := cmd.Flags().GetString("method")
	seed, _ := cmd.Flags().GetInt64("seed")
	exportDir, _ := cmd.Flags().GetString("export")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	snapshotPath, _, err := resolveAlbum(cfg, args[0])
	if err != nil {
		return err
	}

	embeddings, filepaths, err := newService(cfg).Engine(snapshotPath).Embeddings()
	if err != nil {
		return err
	}

	var indices []int
	switch method {
	case "kmeans":
		indices = curation.SelectKMeans(embeddings, count, seed)
	case "fps":
		indices = curation.SelectFPS(embeddings, count, seed)
	default:
		return fmt.Errorf("unknown selection method %q (want fps or kmeans)", method)
	}

	selected := make([]string, len(indices))
	for i, idx := range indices {
		selected[i] = filepaths[idx]
		fmt.Println(filepaths[idx])
	}

	if exportDir != "" {
		result, err := curation.Export(selected, exportDir)
		if err != nil {
			return err
		}
		fmt.Printf("Copied %d files to %s\n", result.Copied, exportDir)
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
	return nil
}
