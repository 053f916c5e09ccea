package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trade-journal/internal/audit"
	"trade-journal/internal/broker"
	"trade-journal/internal/config"
	"trade-journal/internal/lifecycle"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/resilience"
	"trade-journal/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies. They are built on first use so
// commands that only print stay cheap.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
	Broker broker.Broker
	Engine *lifecycle.Engine

	configDir string
	audit     *audit.Logger
}

// Execute runs the CLI with args and releases everything it opened.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := &App{Logger: zerolog.Nop()}
	defer app.Close()

	rootCmd := NewRootCmd(app)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "journal",
		Short: "Trade journal - capital accounting for planned trades",
		Long: `Trade journal keeps an append-only ledger of account and trade capital.

Every trade is planned with an entry, a safety stop and a target. Funding,
submission, fills and exits move capital through the ledger, and risk rules
cap how much capital a trade may put at risk.

Use 'journal <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.configDir, _ = cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return app.loadConfig(debug)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trade-journal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addAccountCommands(rootCmd, app)
	addRuleCommands(rootCmd, app)
	addVehicleCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addTransactionCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)

	return rootCmd
}

func (app *App) loadConfig(debug bool) error {
	cfg, err := config.Load(app.configDir)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	app.Config = cfg
	app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
	return nil
}

// engine opens the store, the broker and the audit trail the first time a
// command needs them.
func (app *App) engine(ctx context.Context) (*lifecycle.Engine, error) {
	if app.Engine != nil {
		return app.Engine, nil
	}

	ds, err := store.NewSQLiteStore(app.Config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	app.Store = ds
	app.Logger.Debug().Str("path", app.Config.Database.Path).Msg("SQLite store initialized")

	inner, err := app.newBroker(ctx, ds)
	if err != nil {
		return nil, err
	}
	app.Broker = resilience.NewGuardedBroker(inner, resilience.CircuitBreakerConfig{
		FailureThreshold: app.Config.Broker.FailureThreshold,
		SuccessThreshold: 1,
		Timeout:          app.Config.Broker.ResetTimeout,
	})

	var rec audit.Recorder
	if app.Config.Audit.Enabled {
		cfg := audit.DefaultConfig()
		cfg.LogDir = app.Config.Audit.Dir
		logger, err := audit.NewLogger(cfg)
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to open audit log, continuing without it")
		} else {
			app.audit = logger
			rec = logger
		}
	}

	app.Engine = lifecycle.New(ds, app.Broker, nil, app.Logger, rec)
	return app.Engine, nil
}

func (app *App) newBroker(ctx context.Context, ds store.DataStore) (broker.Broker, error) {
	if !app.Config.IsPaperMode() {
		z, err := app.zerodha()
		if err != nil {
			return nil, err
		}
		if !z.IsAuthenticated() {
			app.Logger.Warn().Msg("Zerodha session missing, run 'journal auth login'")
		}
		app.Logger.Debug().Msg("Zerodha broker initialized")
		return z, nil
	}

	// Paper orders live in memory, so orders recorded by earlier runs are
	// adopted from the journal.
	paper := broker.NewPaperBroker()
	live, err := ds.ReadTrades(ctx, store.TradeFilter{Statuses: []models.Status{
		models.StatusSubmitted, models.StatusPartiallyFilled, models.StatusFilled,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to read open trades: %w", err)
	}
	for i := range live {
		for _, o := range live[i].Orders() {
			if o.ClosedAt == nil {
				paper.Adopt(o)
			}
		}
	}
	app.Logger.Debug().Int("trades", len(live)).Msg("Paper broker initialized")
	return paper, nil
}

// Close releases the store and the audit log.
func (app *App) Close() error {
	var firstErr error
	if app.audit != nil {
		if err := app.audit.Close(); err != nil {
			firstErr = err
		}
		app.audit = nil
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		app.Store = nil
	}
	app.Engine = nil
	return firstErr
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Trade Journal v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			view := newConfigView(app.Config)
			if output.IsJSON() {
				return output.JSON(view)
			}
			showConfig(output, view)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Path})
			} else {
				output.Println(app.Config.Path)
			}
		},
	})

	return cmd
}

// configView is the printable configuration. Secrets are reduced to whether
// they are set.
type configView struct {
	Path             string `json:"path"`
	Database         string `json:"database"`
	LogLevel         string `json:"log_level"`
	LogFile          string `json:"log_file,omitempty"`
	BrokerMode       string `json:"broker_mode"`
	Exchange         string `json:"exchange"`
	Product          string `json:"product"`
	FailureThreshold int    `json:"failure_threshold"`
	ResetTimeout     string `json:"reset_timeout"`
	AuditDir         string `json:"audit_dir,omitempty"`
	KiteAPIKeySet    bool   `json:"kite_api_key_set"`
	KiteTokenSet     bool   `json:"kite_access_token_set"`
}

func newConfigView(cfg *config.Config) configView {
	v := configView{
		Path:             cfg.Path,
		Database:         cfg.Database.Path,
		LogLevel:         cfg.Logging.Level,
		BrokerMode:       cfg.Broker.Mode,
		Exchange:         cfg.Broker.Exchange,
		Product:          cfg.Broker.Product,
		FailureThreshold: cfg.Broker.FailureThreshold,
		ResetTimeout:     cfg.Broker.ResetTimeout.String(),
		KiteAPIKeySet:    cfg.Credentials.Kite.APIKey != "",
		KiteTokenSet:     cfg.Credentials.Kite.AccessToken != "",
	}
	if cfg.Logging.File {
		v.LogFile = cfg.Logging.FilePath
	}
	if cfg.Audit.Enabled {
		v.AuditDir = cfg.Audit.Dir
	}
	return v
}

func showConfig(output *Output, v configView) {
	output.Bold("Storage")
	output.Printf("  Config file:     %s\n", v.Path)
	output.Printf("  Database:        %s\n", v.Database)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", v.LogLevel)
	if v.LogFile != "" {
		output.Printf("  File:            %s\n", v.LogFile)
	}
	if v.AuditDir != "" {
		output.Printf("  Audit:           %s\n", v.AuditDir)
	} else {
		output.Printf("  Audit:           disabled\n")
	}
	output.Println()

	output.Bold("Broker")
	output.Printf("  Mode:            %s\n", v.BrokerMode)
	output.Printf("  Exchange:        %s\n", v.Exchange)
	output.Printf("  Product:         %s\n", v.Product)
	output.Printf("  Breaker:         %d failures, reset after %s\n", v.FailureThreshold, v.ResetTimeout)
	output.Printf("  Kite API key:    %v\n", v.KiteAPIKeySet)
	output.Printf("  Kite token:      %v\n", v.KiteTokenSet)
}
