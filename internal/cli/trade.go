package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"trade-journal/internal/errors"
	"trade-journal/internal/lifecycle"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// addTradeCommands adds the trade lifecycle commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Plan and follow trades through their lifecycle",
		Long: `Plan and follow trades through their lifecycle.

A trade moves new -> funded -> submitted -> filled -> closed. It can be
canceled until the entry fills.`,
	}

	cmd.AddCommand(newTradeCreateCmd(app))
	cmd.AddCommand(newTradeFundCmd(app))
	cmd.AddCommand(newTradeSubmitCmd(app))
	cmd.AddCommand(newTradeFillCmd(app))
	cmd.AddCommand(newTradeCloseCmd(app))
	cmd.AddCommand(newTradeCancelCmd(app))
	cmd.AddCommand(newTradeModifyCmd(app, "modify-stop", "Move the safety stop in the trade's favour", (*lifecycle.Engine).ModifyStop))
	cmd.AddCommand(newTradeModifyCmd(app, "modify-target", "Move the target", (*lifecycle.Engine).ModifyTarget))
	cmd.AddCommand(newTradeFeeCmd(app))
	cmd.AddCommand(newTradeSizeCmd(app))
	cmd.AddCommand(newTradeShowCmd(app))
	cmd.AddCommand(newTradeListCmd(app))

	rootCmd.AddCommand(cmd)
}

func newTradeCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <account> <vehicle>",
		Short: "Plan a new trade",
		Example: `  journal trade create main AAPL --action buy --qty 10 --entry 10 --stop 9 --target 15
  journal trade create main TSLA --action sell --qty 5 --entry 200 --stop 210 --target 170`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			currency, err := currencyFlag(cmd)
			if err != nil {
				return err
			}
			action, _ := cmd.Flags().GetString("action")
			qty, _ := cmd.Flags().GetInt64("qty")
			category, _ := cmd.Flags().GetString("category")

			prices := make(map[string]decimal.Decimal, 3)
			for _, name := range []string{"entry", "stop", "target"} {
				s, _ := cmd.Flags().GetString(name)
				d, err := parseAmount(name, s)
				if err != nil {
					return err
				}
				prices[name] = d
			}

			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			vehicle, err := engine.ResolveTradingVehicle(ctx, args[1])
			if err != nil {
				return err
			}
			trade, err := engine.CreateTrade(ctx, account.ID, models.DraftTrade{
				TradingVehicleID: vehicle.ID,
				Currency:         currency,
				Action:           models.OrderAction(strings.ToLower(action)),
				Quantity:         qty,
				EntryPrice:       prices["entry"],
				StopPrice:        prices["stop"],
				TargetPrice:      prices["target"],
				EntryCategory:    models.OrderCategory(strings.ToLower(category)),
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s planned for %s", trade.ID, account.Name)
			printTrade(output, trade)
			return nil
		},
	}
	addCurrencyFlag(cmd)
	cmd.Flags().String("action", string(models.ActionBuy), "entry side (buy, sell)")
	cmd.Flags().Int64("qty", 0, "entry quantity")
	cmd.Flags().String("entry", "", "entry price")
	cmd.Flags().String("stop", "", "safety stop price")
	cmd.Flags().String("target", "", "target price")
	cmd.Flags().String("category", string(models.OrderLimit), "entry order type (market, limit)")
	_ = cmd.MarkFlagRequired("qty")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("stop")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newTradeFundCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <trade-id>",
		Short: "Commit account capital to a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := engine.Fund(ctx, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s funded with %s", trade.ID, FormatAmount(trade.Balance.Funding, trade.Currency))
			return nil
		},
	}
}

func newTradeSubmitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <trade-id>",
		Short: "Send the entry, stop and target orders to the broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := engine.Submit(ctx, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s submitted", trade.ID)
			for _, o := range trade.Orders() {
				output.Printf("  %-12s %s\n", o.Role, o.BrokerOrderID)
			}
			return nil
		},
	}
}

func newTradeFillCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill <trade-id> <price>",
		Short: "Record the entry fill",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			price, err := parseAmount("price", args[1])
			if err != nil {
				return err
			}
			partial, _ := cmd.Flags().GetBool("partial")

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := engine.Fill(ctx, args[0], lifecycle.FillRequest{Price: price, Partial: partial})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s %s at %s", trade.ID, trade.Status, price)
			return nil
		},
	}
	cmd.Flags().Bool("partial", false, "the entry filled only partially")
	return cmd
}

func newTradeCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close <trade-id> <target|stop> <price>",
		Short: "Record the exit fill",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			var exit models.OrderRole
			switch strings.ToLower(args[1]) {
			case "target":
				exit = models.RoleTarget
			case "stop", "safety_stop":
				exit = models.RoleSafetyStop
			default:
				return errors.NewValidationError("exit", args[1], "must be target or stop")
			}
			price, err := parseAmount("price", args[2])
			if err != nil {
				return err
			}

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := engine.Close(ctx, args[0], lifecycle.CloseRequest{Exit: exit, Price: price})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s closed at %s", trade.ID, price)
			output.Printf("  Performance: %s\n", output.FormatPerformance(trade.Balance.TotalPerformance, trade.Currency))
			if trade.Balance.Taxed.IsPositive() {
				output.Printf("  Taxed:       %s\n", FormatAmount(trade.Balance.Taxed, trade.Currency))
			}
			return nil
		},
	}
}

func newTradeCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <trade-id>",
		Short: "Cancel a trade before its entry fills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := engine.Cancel(ctx, args[0], lifecycle.CancelRequest{Reason: lifecycle.CancelManual})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s canceled", trade.ID)
			return nil
		},
	}
}

type modifyFunc func(e *lifecycle.Engine, ctx context.Context, tradeID string, price decimal.Decimal) (*models.Trade, error)

func newTradeModifyCmd(app *App, use, short string, modify modifyFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <trade-id> <price>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			price, err := parseAmount("price", args[1])
			if err != nil {
				return err
			}
			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := modify(engine, ctx, args[0], price)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s: stop %s, target %s", trade.ID, trade.SafetyStop.Price, trade.Target.Price)
			return nil
		},
	}
}

func newTradeFeeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fee <trade-id> <open|close> <amount>",
		Short: "Book a broker fee against a trade",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			kind, err := models.ParseKind("fee_" + strings.ToLower(args[1]))
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[2])
			if err != nil {
				return err
			}
			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := engine.ChargeFee(ctx, args[0], kind, amount)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ %s of %s booked on %s", kind, FormatAmount(amount, trade.Currency), trade.ID)
			return nil
		},
	}
}

func newTradeSizeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "size <account> <entry> <stop>",
		Short: "Largest quantity the account can fund within its rules",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			currency, err := currencyFlag(cmd)
			if err != nil {
				return err
			}
			entry, err := parseAmount("entry", args[1])
			if err != nil {
				return err
			}
			stop, err := parseAmount("stop", args[2])
			if err != nil {
				return err
			}
			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			qty, err := engine.Size(ctx, account.ID, currency, entry, stop)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"account_id": account.ID, "quantity": qty})
			}
			output.Printf("Max quantity: %s\n", output.Green(strconv.FormatInt(qty, 10)))
			return nil
		},
	}
	addCurrencyFlag(cmd)
	return cmd
}

func newTradeShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <trade-id>",
		Short: "Show a trade with its orders and capital",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			trade, err := engine.Trade(ctx, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			printTrade(output, trade)
			return nil
		},
	}
}

func newTradeListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}

			filter := store.TradeFilter{}
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if ref, _ := cmd.Flags().GetString("account"); ref != "" {
				account, err := engine.ResolveAccount(ctx, ref)
				if err != nil {
					return err
				}
				filter.AccountID = account.ID
			}
			statuses, _ := cmd.Flags().GetStringSlice("status")
			for _, s := range statuses {
				status, err := models.ParseStatus(s)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			trades, err := engine.Trades(ctx, filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Dim("No trades.")
				return nil
			}
			table := NewTable(output, "ID", "SYMBOL", "SIDE", "QTY", "ENTRY", "STOP", "TARGET", "STATUS", "PERFORMANCE")
			for i := range trades {
				t := &trades[i]
				table.AddRow(
					t.ID,
					t.Symbol,
					string(t.Direction()),
					strconv.FormatInt(t.Entry.Quantity, 10),
					t.Entry.Price.String(),
					t.SafetyStop.Price.String(),
					t.Target.Price.String(),
					output.FormatStatus(t.Status),
					output.FormatPerformance(t.Balance.TotalPerformance, t.Currency),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("account", "", "only trades of this account (id or name)")
	cmd.Flags().StringSlice("status", nil, "only trades in these statuses")
	cmd.Flags().Int("limit", 0, "maximum number of trades")
	return cmd
}

func printTrade(output *Output, t *models.Trade) {
	output.Bold("%s %s %s (%s)", t.ID, t.Direction(), t.Symbol, t.Currency)
	output.Printf("  Status:      %s\n", output.FormatStatus(t.Status))

	table := NewTable(output, "ORDER", "ACTION", "TYPE", "QTY", "PRICE", "FILLED", "BROKER ID", "SUBMITTED", "CLOSED")
	for _, o := range t.Orders() {
		filled := "-"
		if o.AverageFilledPrice != nil {
			filled = o.AverageFilledPrice.String()
		}
		brokerID := o.BrokerOrderID
		if brokerID == "" {
			brokerID = "-"
		}
		table.AddRow(string(o.Role), string(o.Action), string(o.Category), strconv.FormatInt(o.Quantity, 10),
			o.Price.String(), filled, brokerID, FormatTime(o.SubmittedAt), FormatTime(o.ClosedAt))
	}
	output.Println()
	table.Render()
	output.Println()

	b := t.Balance
	output.Printf("  Funding:         %s\n", FormatAmount(b.Funding, t.Currency))
	output.Printf("  In market:       %s\n", FormatAmount(b.CapitalInMarket, t.Currency))
	output.Printf("  Out of market:   %s\n", FormatAmount(b.CapitalOutOfMarket, t.Currency))
	output.Printf("  Taxed:           %s\n", FormatAmount(b.Taxed, t.Currency))
	output.Printf("  Performance:     %s\n", output.FormatPerformance(b.TotalPerformance, t.Currency))
}
