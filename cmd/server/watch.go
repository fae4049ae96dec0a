package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roadcams/conditions-dashboard/internal/dashboard"
	"github.com/roadcams/conditions-dashboard/internal/logging"
	"github.com/roadcams/conditions-dashboard/internal/source"
	"github.com/roadcams/conditions-dashboard/internal/watch"
	"github.com/spf13/cobra"
)

func addWatchCmd(rootCmd *cobra.Command) {
	var (
		filters filterFlags
		baseURL string
	)
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a running dashboard and print every view it pushes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)
			watcher := watch.NewWatcher(baseURL, filters.criteria(), filters.visualizationMode(), logger)

			enc := json.NewEncoder(os.Stdout)
			watcher.Run(cmd.Context(), func(view dashboard.View) {
				if jsonOutput {
					_ = enc.Encode(view)
					return
				}
				printView(view)
			})
			return nil
		},
	}
	filters.register(watchCmd)
	watchCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Dashboard base URL")
	rootCmd.AddCommand(watchCmd)
}

func printView(view dashboard.View) {
	switch view.Phase {
	case source.PhaseLoading:
		fmt.Println("Loading road conditions...")
		return
	case source.PhaseError:
		fmt.Printf("Error loading road conditions: %s\n", view.Error)
		return
	}
	status := "connected"
	if !view.Connected {
		status = "disconnected, showing last known data"
	}
	fmt.Printf("\n=== %s (%s) ===\n", view.LastUpdated, status)
	printCameras(os.Stdout, view.Cameras)
	printStats(os.Stdout, view.Stats)
}
