package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var slideshowCmd = &cobra.Command{
	Use:   "slideshow <album>",
	Short: "Print album images in slideshow order",
	Long: `List an album's images in modification-time order (the sequential
slideshow order), or shuffled with --random.`,
	Args: cobra.ExactArgs(1),
	RunE: runSlideshow,
}

func init() {
	rootCmd.AddCommand(slideshowCmd)
	slideshowCmd.Flags().Bool("random", false, "Shuffle instead of sequential order")
}

func runSlideshow(cmd *cobra.Command, args []string) error {
	random, _ := cmd.Flags().GetBool("random")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	snapshotPath, _, err := resolveAlbum(cfg, args[0])
	if err != nil {
		return err
	}
	engine := newService(cfg).Engine(snapshotPath)

	if random {
		records, err := engine.Iterate(true)
		if err != nil {
			return err
		}
		for _, rec := range records {
			fmt.Println(rec.Filepath)
		}
		return nil
	}

	// Walk the sequential order through Next so the output matches what
	// the slideshow frontend would show.
	count, err := engine.Count()
	if err != nil {
		return err
	}
	current := ""
	for i := 0; i < count; i++ {
		rec, err := engine.Next(current)
		if err != nil {
			return err
		}
		fmt.Println(rec.Filepath)
		current = rec.Filepath
	}
	return nil
}
