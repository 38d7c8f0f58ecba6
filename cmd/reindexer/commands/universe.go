package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfolio/reindexer/internal/backtest"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Sector universe inspection",
}

var universeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the sector universe",
	RunE: func(cmd *cobra.Command, args []string) error {
		uni, err := loadUniverse()
		if err != nil {
			return err
		}

		fmt.Printf("Universe: %s (%d sectors, %d tickers)\n\n", uni.Name, uni.SectorCount(), len(uni.UniqueTickers()))
		for _, sector := range uni.SectorLabels() {
			fmt.Printf("%-24s %v\n", sector, uni.Tickers(sector))
		}
		return nil
	},
}

var universeValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Prune tickers without resolvable bar data",
	Long: `Checks every universe ticker against the loaded bar data, removing
tickers that cannot be resolved or traded. A sector left empty fails
validation: its synthetic index would have no basket.`,
	RunE: runUniverseValidate,
}

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeShowCmd)
	universeCmd.AddCommand(universeValidateCmd)
}

func runUniverseValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := initProcess()
	if err != nil {
		return err
	}

	uni, err := loadUniverse()
	if err != nil {
		return err
	}

	store, err := loadStore(cmd.Context(), cfg, uni, log)
	if err != nil {
		return err
	}

	sim := backtest.NewSimulator(store, 0, 0, log)
	if err := uni.Validate(sim, log); err != nil {
		return fmt.Errorf("universe validation failed: %w", err)
	}

	fmt.Printf("✅ Universe valid: %d sectors, %d tradeable tickers\n", uni.SectorCount(), len(uni.UniqueTickers()))

	if invalid := uni.InvalidTickers(); len(invalid) > 0 {
		fmt.Printf("\nRemoved %d tickers:\n", len(invalid))
		for _, t := range invalid {
			fmt.Printf("  %-8s %-24s %s\n", t.Ticker, t.Sector, t.Reason)
		}
	}

	return nil
}
