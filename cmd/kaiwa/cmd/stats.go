package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kaiwa/src/config"
	"kaiwa/src/database"
)

var statsRecent int

// statsCmd summarizes the usage store.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show relay usage statistics",
	Long:  `Summarize recorded requests from the local usage database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		path := settings.Usage.Path
		if path == "" {
			path = config.DatabasePath()
		}

		store, err := database.NewUsageStore(path)
		if err != nil {
			return fmt.Errorf("failed to open usage store: %w", err)
		}
		defer store.Close()

		summary, err := store.Summary()
		if err != nil {
			return err
		}

		fmt.Printf("requests:   %d\n", summary.Total)
		fmt.Printf("succeeded:  %d\n", summary.Succeeded)
		fmt.Printf("rejected:   %d\n", summary.Rejected)
		fmt.Printf("failed:     %d\n", summary.Failed)
		fmt.Printf("bytes out:  %d\n", summary.TotalBytes)
		fmt.Printf("avg time:   %.0f ms\n", summary.AvgDurationMS)

		if statsRecent > 0 {
			records, err := store.Recent(statsRecent)
			if err != nil {
				return err
			}
			fmt.Println()
			for _, rec := range records {
				fmt.Printf("%s  %-14s persona=%s fragments=%d bytes=%d %dms\n",
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.Status, rec.Persona, rec.Fragments, rec.BytesOut, rec.DurationMS)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().IntVar(&statsRecent, "recent", 0, "also list the N most recent requests")
}
