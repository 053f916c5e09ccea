package cli

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"trade-journal/internal/errors"
	"trade-journal/internal/lifecycle"
	"trade-journal/internal/models"
)

// ============================================================================
// Argument helpers
// ============================================================================

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.NewValidationError(field, s, "not a decimal number")
	}
	return d, nil
}

func currencyFlag(cmd *cobra.Command) (models.Currency, error) {
	s, _ := cmd.Flags().GetString("currency")
	return models.ParseCurrency(s)
}

func addCurrencyFlag(cmd *cobra.Command) {
	cmd.Flags().String("currency", string(models.USD), "currency (USD, EUR, BTC)")
}

// account resolves an account id or name and returns it with the engine.
func (app *App) account(ctx context.Context, ref string) (*lifecycle.Engine, *models.Account, error) {
	engine, err := app.engine(ctx)
	if err != nil {
		return nil, nil, err
	}
	account, err := engine.ResolveAccount(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	return engine, account, nil
}

// ============================================================================
// Account commands
// ============================================================================

func addAccountCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts and account capital",
	}
	cmd.AddCommand(newAccountCreateCmd(app))
	cmd.AddCommand(newAccountDepositCmd(app))
	cmd.AddCommand(newAccountWithdrawCmd(app))
	cmd.AddCommand(newAccountBalanceCmd(app))
	cmd.AddCommand(newAccountListCmd(app))
	rootCmd.AddCommand(cmd)
}

func newAccountCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			description, _ := cmd.Flags().GetString("description")
			envFlag, _ := cmd.Flags().GetString("env")
			taxes, _ := cmd.Flags().GetString("taxes")
			earnings, _ := cmd.Flags().GetString("earnings")

			env, err := models.ParseEnvironment(envFlag)
			if err != nil {
				return err
			}
			taxesPct, err := parseAmount("taxes", taxes)
			if err != nil {
				return err
			}
			earningsPct, err := parseAmount("earnings", earnings)
			if err != nil {
				return err
			}

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			account, err := engine.CreateAccount(ctx, lifecycle.NewAccount{
				Name:               args[0],
				Description:        description,
				Environment:        env,
				TaxesPercentage:    taxesPct,
				EarningsPercentage: earningsPct,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(account)
			}
			output.Success("✓ Account %s created", account.Name)
			output.Dim("  id: %s", account.ID)
			return nil
		},
	}
	cmd.Flags().String("description", "", "account description")
	cmd.Flags().String("env", string(models.EnvironmentPaper), "environment (paper, live)")
	cmd.Flags().String("taxes", "0", "percent of each realized profit set aside for taxes")
	cmd.Flags().String("earnings", "0", "percent of each realized profit set aside as earnings")
	return cmd
}

func newAccountDepositCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Deposit capital into an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			currency, err := currencyFlag(cmd)
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			tx, err := engine.Deposit(ctx, account.ID, currency, amount)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(newTxRow(tx))
			}
			output.Success("✓ Deposited %s into %s", FormatAmount(tx.Amount, currency), account.Name)
			return nil
		},
	}
	addCurrencyFlag(cmd)
	return cmd
}

func newAccountWithdrawCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw <account> <amount>",
		Short: "Withdraw available capital from an account",
		Long: `Withdraw available capital from an account.

Use --kind withdrawal_tax or --kind withdrawal_earnings to pay out the
amounts set aside from closed trades.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			currency, err := currencyFlag(cmd)
			if err != nil {
				return err
			}
			kindFlag, _ := cmd.Flags().GetString("kind")
			kind, err := models.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			tx, err := engine.Withdraw(ctx, account.ID, currency, amount, kind)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(newTxRow(tx))
			}
			output.Success("✓ Withdrew %s from %s (%s)", FormatAmount(tx.Amount, currency), account.Name, kind)
			return nil
		},
	}
	addCurrencyFlag(cmd)
	cmd.Flags().String("kind", models.KindWithdrawal.Key(), "withdrawal, withdrawal_tax or withdrawal_earnings")
	return cmd
}

func newAccountBalanceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the capital balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			currency, err := currencyFlag(cmd)
			if err != nil {
				return err
			}
			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			balance, err := engine.AccountBalance(ctx, account.ID, currency)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(balance)
			}
			output.Bold("%s (%s)", account.Name, currency)
			output.Printf("  Total balance:   %s\n", FormatAmount(balance.TotalBalance, currency))
			output.Printf("  Available:       %s\n", FormatAmount(balance.TotalAvailable, currency))
			output.Printf("  In trade:        %s\n", FormatAmount(balance.TotalInTrade, currency))
			output.Printf("  Taxed:           %s\n", FormatAmount(balance.Taxed, currency))
			return nil
		},
	}
	addCurrencyFlag(cmd)
	return cmd
}

func newAccountListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, err := app.engine(ctx)
			if err != nil {
				return err
			}
			accounts, err := engine.Accounts(ctx)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(accounts)
			}
			if len(accounts) == 0 {
				output.Dim("No accounts. Create one with 'journal account create <name>'.")
				return nil
			}
			table := NewTable(output, "NAME", "ENV", "TAXES %", "EARNINGS %", "ID")
			for _, a := range accounts {
				table.AddRow(a.Name, string(a.Environment), a.TaxesPercentage.String(), a.EarningsPercentage.String(), a.ID)
			}
			table.Render()
			return nil
		},
	}
}

// ============================================================================
// Rule commands
// ============================================================================

func addRuleCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage account risk rules",
	}
	cmd.AddCommand(newRuleCreateCmd(app))
	cmd.AddCommand(newRuleListCmd(app))
	cmd.AddCommand(newRuleDeactivateCmd(app))
	rootCmd.AddCommand(cmd)
}

func newRuleCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <account> <risk_per_trade|risk_per_month> <percent>",
		Short: "Create a risk rule",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			value, err := parseAmount("value", args[2])
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("level")
			priority, _ := cmd.Flags().GetInt("priority")
			description, _ := cmd.Flags().GetString("description")

			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			rule, err := engine.CreateRule(ctx, lifecycle.NewRule{
				AccountID:   account.ID,
				Name:        models.RuleName(args[1]),
				Value:       value,
				Description: description,
				Priority:    priority,
				Level:       models.RuleLevel(level),
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(rule)
			}
			output.Success("✓ Rule %s %s%% (%s) created", rule.Name, rule.Value, rule.Level)
			output.Dim("  id: %s", rule.ID)
			return nil
		},
	}
	cmd.Flags().String("level", string(models.LevelError), "severity logged when the rule blocks funding: advice, warning or error")
	cmd.Flags().Int("priority", 0, "evaluation order, lowest first")
	cmd.Flags().String("description", "", "rule description")
	return cmd
}

func newRuleListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <account>",
		Short: "List the rules of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			rules, err := engine.Rules(ctx, account.ID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(rules)
			}
			table := NewTable(output, "NAME", "VALUE %", "LEVEL", "PRIORITY", "ACTIVE", "ID")
			for _, r := range rules {
				active := output.Green("yes")
				if !r.Active {
					active = output.DimText("no")
				}
				table.AddRow(string(r.Name), r.Value.String(), string(r.Level), strconv.Itoa(r.Priority), active, r.ID)
			}
			table.Render()
			return nil
		},
	}
}

func newRuleDeactivateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <account> <rule-id>",
		Short: "Deactivate a risk rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, account, err := app.account(ctx, args[0])
			if err != nil {
				return err
			}
			if err := engine.DeactivateRule(ctx, account.ID, args[1]); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"rule_id": args[1], "status": "inactive"})
			}
			output.Success("✓ Rule %s deactivated", args[1])
			return nil
		},
	}
}
