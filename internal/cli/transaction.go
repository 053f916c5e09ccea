package cli

import (
	"time"

	"github.com/spf13/cobra"

	"trade-journal/internal/models"
)

// txRow is the printable and exportable form of a ledger entry.
type txRow struct {
	ID        string `json:"id" csv:"id"`
	CreatedAt string `json:"created_at" csv:"created_at"`
	AccountID string `json:"account_id" csv:"account_id"`
	TradeID   string `json:"trade_id,omitempty" csv:"trade_id"`
	Category  string `json:"category" csv:"category"`
	Currency  string `json:"currency" csv:"currency"`
	Amount    string `json:"amount" csv:"amount"`
}

func newTxRow(tx *models.Transaction) txRow {
	return txRow{
		ID:        tx.ID,
		CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		AccountID: tx.AccountID,
		TradeID:   tx.TradeID,
		Category:  tx.Category.Key(),
		Currency:  string(tx.Currency),
		Amount:    tx.Amount.String(),
	}
}

func addTransactionCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Inspect the transaction ledger",
	}
	cmd.AddCommand(newTxListCmd(app))
	cmd.AddCommand(newTxDeleteCmd(app))
	rootCmd.AddCommand(cmd)
}

func newTxListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <account>",
		Short: "List ledger entries in the order they were recorded",
		Example: `  journal tx list main
  journal tx list main --trade 5f0c... --kind fund_trade,open_trade
  journal tx list main --csv > ledger.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}

			filter := models.TransactionFilter{AccountID: account.ID}
			filter.TradeID, _ = cmd.Flags().GetString("trade")
			if c, _ := cmd.Flags().GetString("currency"); c != "" {
				currency, err := models.ParseCurrency(c)
				if err != nil {
					return err
				}
				filter.Currency = currency
			}
			kinds, _ := cmd.Flags().GetStringSlice("kind")
			for _, k := range kinds {
				kind, err := models.ParseKind(k)
				if err != nil {
					return err
				}
				filter.Kinds = append(filter.Kinds, kind)
			}

			txs, err := engine.Transactions(ctx, filter)
			if err != nil {
				return err
			}
			rows := make([]txRow, 0, len(txs))
			for i := range txs {
				rows = append(rows, newTxRow(&txs[i]))
			}

			if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
				return output.CSV(&rows)
			}
			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Dim("No transactions.")
				return nil
			}
			table := NewTable(output, "CREATED", "CATEGORY", "AMOUNT", "TRADE", "ID")
			for i := range txs {
				tx := &txs[i]
				trade := tx.TradeID
				if trade == "" {
					trade = "-"
				}
				amount := FormatAmount(tx.Amount, tx.Currency)
				switch tx.Category.Kind.AccountFlow() {
				case models.FlowInflow:
					amount = output.Green(amount)
				case models.FlowOutflow:
					amount = output.Red(amount)
				}
				table.AddRow(FormatTime(&tx.CreatedAt), tx.Category.Key(), amount, trade, tx.ID)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("trade", "", "only entries of this trade")
	cmd.Flags().String("currency", "", "only entries in this currency")
	cmd.Flags().StringSlice("kind", nil, "only entries of these categories")
	cmd.Flags().Bool("csv", false, "export as CSV")
	return cmd
}

func newTxDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account> <tx-id>",
		Short: "Soft-delete a deposit or withdrawal entered by mistake",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			if err := engine.DeleteTransaction(ctx, account.ID, args[1]); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"transaction_id": args[1], "status": "deleted"})
			}
			output.Success("✓ Transaction %s deleted", args[1])
			return nil
		},
	}
}
