package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/roadcams/conditions-dashboard/internal/config"
	"github.com/roadcams/conditions-dashboard/internal/model"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	jsonOutput bool
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "roadcams",
		Short: "Road camera conditions dashboard",
		Long: `roadcams proxies the classifier backend's road conditions, keeps the
latest snapshot fresh and serves filtered views to the dashboard frontend.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	addServeCmd(rootCmd)
	addListCmd(rootCmd)
	addWatchCmd(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// filterFlags binds the viewer criteria shared by list and watch.
type filterFlags struct {
	search    string
	safe      bool
	caution   bool
	hazardous bool
	failed    bool
	mode      string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	defaults := model.DefaultFilterCriteria()
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Case-insensitive display name filter")
	cmd.Flags().BoolVar(&f.safe, "safe", defaults.ShowSafe, "Show safe cameras")
	cmd.Flags().BoolVar(&f.caution, "caution", defaults.ShowCaution, "Show caution cameras")
	cmd.Flags().BoolVar(&f.hazardous, "hazardous", defaults.ShowHazardous, "Show hazardous cameras")
	cmd.Flags().BoolVar(&f.failed, "failed", defaults.ShowFailed, "Show failed cameras")
	cmd.Flags().StringVar(&f.mode, "mode", string(model.DefaultVisualizationMode), "Visualization mode (markers or heatmap)")
}

func (f *filterFlags) criteria() model.FilterCriteria {
	return model.FilterCriteria{
		Search:        f.search,
		ShowSafe:      f.safe,
		ShowCaution:   f.caution,
		ShowHazardous: f.hazardous,
		ShowFailed:    f.failed,
	}
}

func (f *filterFlags) visualizationMode() model.VisualizationMode {
	return model.ParseVisualizationMode(f.mode)
}
