package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keywordscout/keywordscout/internal/config"
	"github.com/keywordscout/keywordscout/internal/keyword"
	"github.com/keywordscout/keywordscout/internal/pipeline"
	"github.com/keywordscout/keywordscout/internal/ui"
)

func newExpandCmd() *cobra.Command {
	var (
		geoCode   string
		language  string
		mode      string
		storePath string
		exportDir string
		clusters  int
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "expand <seed> [seed...]",
		Short: "Expand seed queries into scored, clustered keywords",
		Example: `  keywordscout expand "marketing digital"
  keywordscout expand --geo ES --export ./out "curso seo" "agencia sem"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if geoCode != "" {
				cfg.Geo = geoCode
			}
			if language != "" {
				cfg.Language = language
			}
			if mode != "" {
				cfg.Scoring.Mode = mode
			}
			if storePath != "" {
				cfg.Store.Path = storePath
			}
			if exportDir != "" {
				cfg.Export.Dir = exportDir
			}
			if clusters > 0 {
				cfg.Clustering.TargetClusters = clusters
			}

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			seeds := make([]keyword.SeedQuery, len(args))
			for i, text := range args {
				seeds[i] = keyword.SeedQuery{Text: text, Geo: cfg.Geo, Language: cfg.Language}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := p.Run(ctx, seeds)
			if err != nil {
				return err
			}

			report := ui.NewReport(cmd.OutOrStdout(), ui.GetStyles(noColor))
			report.Render(result)

			if result.Partial {
				return context.Canceled
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&geoCode, "geo", "", "Target market country code (PE, ES, MX, ...)")
	cmd.Flags().StringVar(&language, "lang", "", "Target language code")
	cmd.Flags().StringVar(&mode, "mode", "", "Scoring mode: ensemble or standardized")
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database path for persisting results")
	cmd.Flags().StringVar(&exportDir, "export", "", "Directory for CSV artifacts")
	cmd.Flags().IntVar(&clusters, "clusters", 0, "Target cluster count (0 = derive from batch size)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
