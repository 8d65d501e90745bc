package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/clipslide/internal/index"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates <album>",
	Short: "Find clusters of near-identical images in an album",
	Args:  cobra.ExactArgs(1),
	RunE:  runDuplicates,
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)
	duplicatesCmd.Flags().Float64("threshold", index.DefaultDuplicateThreshold, "Cosine similarity threshold for duplicates")
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	snapshotPath, _, err := resolveAlbum(cfg, args[0])
	if err != nil {
		return err
	}

	clusters, err := newService(cfg).Engine(snapshotPath).FindDuplicateClusters(threshold)
	if err != nil {
		return err
	}
	if len(clusters) == 0 {
		fmt.Println("No duplicate clusters found.")
		return nil
	}
	for i, cluster := range clusters {
		fmt.Printf("Cluster %d:\n", i+1)
		for _, path := range cluster {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	}
	return nil
}
