package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keywordscout/keywordscout/internal/config"
	"github.com/keywordscout/keywordscout/internal/store"
	"github.com/keywordscout/keywordscout/internal/ui"
)

func newQueryCmd() *cobra.Command {
	var (
		storePath      string
		geoCode        string
		language       string
		minScore       float64
		minVolume      int
		maxCompetition float64
		minWords       int
		limit          int
		noColor        bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored keywords from previous runs",
		Example: `  keywordscout query --store keywords.db --min-score 60
  keywordscout query --store keywords.db --geo PE --max-competition 0.5 --limit 25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := storePath
			if path == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				path = cfg.Store.Path
			}
			if path == "" {
				return fmt.Errorf("no store configured: pass --store or set store.path in the config")
			}

			s, err := store.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			kws, err := s.Query(store.Filter{
				Geo:            geoCode,
				Language:       language,
				MinScore:       minScore,
				MinVolume:      minVolume,
				MaxCompetition: maxCompetition,
				MinWords:       minWords,
				Limit:          limit,
			})
			if err != nil {
				return err
			}

			report := ui.NewReport(cmd.OutOrStdout(), ui.GetStyles(noColor))
			report.RenderKeywords(kws)
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database path")
	cmd.Flags().StringVar(&geoCode, "geo", "", "Filter by market country code")
	cmd.Flags().StringVar(&language, "lang", "", "Filter by language code")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum final score")
	cmd.Flags().IntVar(&minVolume, "min-volume", 0, "Minimum estimated volume")
	cmd.Flags().Float64Var(&maxCompetition, "max-competition", 0, "Maximum competition estimate")
	cmd.Flags().IntVar(&minWords, "min-words", 0, "Minimum word count")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to show")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
