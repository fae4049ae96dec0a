package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/roadcams/conditions-dashboard/internal/model"
	"github.com/roadcams/conditions-dashboard/internal/pipeline"
	"github.com/roadcams/conditions-dashboard/internal/upstream"
	"github.com/spf13/cobra"
)

func addListCmd(rootCmd *cobra.Command) {
	var (
		filters filterFlags
		baseURL string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch current conditions once and print the filtered cameras",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				baseURL = cfg.APIURL
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			snapshot, err := upstream.NewClient(baseURL).Fetch(ctx)
			if err != nil {
				return fmt.Errorf("fetch conditions: %w", err)
			}
			view := pipeline.Apply(snapshot, filters.criteria())
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printCameras(os.Stdout, view.Cameras)
			printStats(os.Stdout, view.Stats)
			return nil
		},
	}
	filters.register(listCmd)
	listCmd.Flags().StringVar(&baseURL, "url", "", "Conditions API base URL (default API_URL)")
	rootCmd.AddCommand(listCmd)
}

func printCameras(out io.Writer, cameras map[string]model.CameraRecord) {
	ids := make([]string, 0, len(cameras))
	for id := range cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLEVEL\tSTATUS\tCONDITION\tCONFIDENCE")
	fmt.Fprintln(w, "--\t----\t-----\t------\t---------\t----------")
	for _, id := range ids {
		record := cameras[id]
		condition, confidence := "-", "-"
		if record.Classification != nil {
			condition = record.Classification.Condition
			confidence = fmt.Sprintf("%.0f%%", record.Classification.Confidence*100)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id,
			record.Camera.DisplayName,
			record.Level(),
			record.Status,
			condition,
			confidence,
		)
	}
	w.Flush()
}

func printStats(out io.Writer, stats model.Stats) {
	fmt.Fprintf(out, "\nTotal: %d  Safe: %d  Caution: %d  Hazardous: %d  Failed: %d\n",
		stats.Total, stats.Safe, stats.Caution, stats.Hazardous, stats.Failed)
}
