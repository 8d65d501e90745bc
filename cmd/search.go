package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/clipslide/internal/index"
)

var searchCmd = &cobra.Command{
	Use:   "search <album> <query>",
	Short: "Search an album by text or by example image",
	Long: `Search an album's index by cosine similarity. The query is a
natural-language phrase by default; with --image it is a path to a
query image instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Bool("image", false, "Treat the query as a path to a query image")
	searchCmd.Flags().Int("top-k", index.DefaultTopK, "Maximum number of results")
	searchCmd.Flags().Float64("min-score", -1, "Minimum similarity score (defaults per query type)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	albumKey, query := args[0], args[1]
	byImage, _ := cmd.Flags().GetBool("image")
	topK, _ := cmd.Flags().GetInt("top-k")
	minScore, _ := cmd.Flags().GetFloat64("min-score")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	snapshotPath, _, err := resolveAlbum(cfg, albumKey)
	if err != nil {
		return err
	}
	engine := newService(cfg).Engine(snapshotPath)

	var matches []index.Match
	if byImage {
		data, err := os.ReadFile(query)
		if err != nil {
			return fmt.Errorf("reading query image: %w", err)
		}
		matches, err = engine.SearchByImage(cmd.Context(), data, topK, minScore)
		if err != nil {
			return err
		}
	} else {
		matches, err = engine.SearchByText(cmd.Context(), query, topK, minScore)
		if err != nil {
			return err
		}
	}

	if len(matches) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%.4f  %s\n", m.Score, m.Filepath)
	}
	return nil
}
