package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketharvest/carharvest/internal/config"
	"github.com/marketharvest/carharvest/internal/logging"
	"github.com/marketharvest/carharvest/internal/planner"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Prints the city queue a harvest run would process",
		Long: `Loads the city reference list, subtracts the cities already present
in the checkpoint store, and prints the ordered queue without crawling
anything. Useful for checking what a resumed run will do.`,
		RunE: runPlanCommand,
	}
}

func runPlanCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("store close failed", zap.Error(cerr))
		}
	}()

	queue := planner.New(cfg.Harvest.CityListPath, cfg.Harvest.PriorityCities, st, logger)
	cities, err := queue.Plan(cmd.Context())
	if err != nil {
		return fmt.Errorf("plan harvest: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(cities) == 0 {
		fmt.Fprintln(out, "nothing to do: every listed city is already in the store")
		return nil
	}
	fmt.Fprintf(out, "%d cities queued:\n", len(cities))
	for i, city := range cities {
		fmt.Fprintf(out, "%3d. %-20s %s\n", i+1, city.DisplayName(), city.ListingPageURL(cfg.Harvest.BaseURL))
	}
	return nil
}
