package cli

import (
	"github.com/spf13/cobra"

	"trade-journal/internal/lifecycle"
	"trade-journal/internal/models"
)

// ============================================================================
// Trading vehicle commands
// ============================================================================

func addVehicleCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Manage the instruments trades are planned on",
	}
	cmd.AddCommand(newVehicleCreateCmd(app))
	cmd.AddCommand(newVehicleListCmd(app))
	rootCmd.AddCommand(cmd)
}

func newVehicleCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <symbol>",
		Short: "Register a trading vehicle",
		Example: `  journal vehicle create AAPL --isin US0378331005
  journal vehicle create BTC --category crypto --broker kraken`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			isin, _ := cmd.Flags().GetString("isin")
			categoryFlag, _ := cmd.Flags().GetString("category")
			brokerName, _ := cmd.Flags().GetString("broker")
			if brokerName == "" {
				brokerName = app.Config.Broker.Mode
			}
			category, err := models.ParseVehicleCategory(categoryFlag)
			if err != nil {
				return err
			}

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			vehicle, err := engine.CreateTradingVehicle(ctx, lifecycle.NewTradingVehicle{
				Symbol:   args[0],
				ISIN:     isin,
				Category: category,
				Broker:   brokerName,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(vehicle)
			}
			output.Success("✓ Vehicle %s (%s) created at %s", vehicle.Symbol, vehicle.Category, vehicle.Broker)
			output.Dim("  id: %s", vehicle.ID)
			return nil
		},
	}
	cmd.Flags().String("isin", "", "international securities identification number")
	cmd.Flags().String("category", string(models.VehicleStock), "vehicle category (crypto, fiat, stock)")
	cmd.Flags().String("broker", "", "broker the vehicle trades at (default: the configured broker mode)")
	return cmd
}

func newVehicleListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trading vehicles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			search, _ := cmd.Flags().GetString("search")
			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			vehicles, err := engine.TradingVehicles(ctx, search)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(vehicles)
			}
			if len(vehicles) == 0 {
				output.Dim("No trading vehicles. Create one with 'journal vehicle create <symbol>'.")
				return nil
			}
			table := NewTable(output, "SYMBOL", "ISIN", "CATEGORY", "BROKER", "ID")
			for _, v := range vehicles {
				table.AddRow(v.Symbol, v.ISIN, string(v.Category), v.Broker, v.ID)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("search", "", "only vehicles whose symbol or ISIN contains this text")
	return cmd
}
