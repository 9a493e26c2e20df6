package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Dias221467/TimeCapsule/internal/app"
	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/internal/database"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
)

// Set via ldflags at build time
var version = "dev"

func main() {
	var output string

	rootCmd := &cobra.Command{
		Use:   "capsulectl",
		Short: "Operate the time capsule service",
		Long:  "Runs the unlock and reminder sweeps once and performs store maintenance outside the server process.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("unsupported output %q (json or yaml)", output)
			}
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "yaml", "Output format: json or yaml")

	rootCmd.AddCommand(sweepCmd(&output), seedCmd(), indexesCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func sweepCmd(output *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a sweep once",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "unlock",
		Short: "Unlock every capsule that is due and notify owners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.UnlockSweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), *output, res)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reminders",
		Short: "Send upcoming-unlock reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.ReminderSweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), *output, res)
			})
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-templates",
		Short: "Insert the built-in emotion templates that are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// app.New seeds on startup.
			return withApp(cmd.Context(), func(a *app.App) error {
				templates, err := a.Templates.GetAllTemplates(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d emotion templates available\n", len(templates))
				return nil
			})
		},
	}
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the MongoDB indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			db, err := database.ConnectDB(cfg)
			if err != nil {
				return err
			}
			defer db.Client().Disconnect(context.Background())

			if err := database.EnsureIndexes(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ensured")
			return nil
		},
	}
}

func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	logger.InitLogger(cfg.LogLevel)
	logger.Log.SetOutput(os.Stderr)
	return cfg
}

func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(a)
}

func render(w io.Writer, format string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}
