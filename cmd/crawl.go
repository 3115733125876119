package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cart-crawler/internal/app"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Enumerates, ranks and downloads every cart",
		Long: `Renders the paginated cart listing in a headless browser, retrieves each
cart's detail page, sorts the carts by favorite count, downloads their assets
and saves the ranking snapshot. Individual page, cart or download failures only
shrink the result.`,
		RunE: withApp(runCrawlCommand),
	}
}

func runCrawlCommand(cmd *cobra.Command, appInstance *app.App) error {
	logger := appInstance.Logger()

	renderer, err := appInstance.NewRenderer()
	if err != nil {
		return err
	}
	defer renderer.Close()

	summary, err := appInstance.CrawlPipeline(renderer).Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	logger.Info("crawl command finished",
		zap.String("run_id", summary.RunID),
		zap.Int("pages", summary.PagesFetched),
		zap.Ints("failed_pages", summary.FailedPages),
		zap.Int("ids", summary.IDs),
		zap.Int("records", summary.Records),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("download_failures", summary.DownloadFailures),
	)
	return nil
}
