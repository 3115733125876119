package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cart-crawler/internal/app"
)

func newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Downloads the carts listed in an existing snapshot",
		Long: `Loads the ranking snapshot written by a previous crawl and downloads
every cart asset again, keeping the snapshot's order for file names.`,
		RunE: withApp(runDownloadCommand),
	}
}

func runDownloadCommand(cmd *cobra.Command, appInstance *app.App) error {
	stats, err := appInstance.DownloadPipeline().DownloadSnapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	appInstance.Logger().Info("download command finished",
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
