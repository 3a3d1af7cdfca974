// Command campaignctl runs campaign operations from the shell without going
// through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignite/line-broadcast/internal/app"
	"github.com/ignite/line-broadcast/internal/config"
	"github.com/ignite/line-broadcast/internal/delivery"
)

var (
	configPath string
	instance   *app.App
)

var rootCmd = &cobra.Command{
	Use:           "campaignctl",
	Short:         "Operate LINE broadcast campaigns",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a, err := app.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		instance = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to config file")
	rootCmd.AddCommand(executeCmd, scheduleCmd, cancelCmd, estimateCmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if instance != nil {
		instance.Close()
	}
	stop()
	switch {
	case errors.Is(err, delivery.ErrAllUnitsFailed):
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
