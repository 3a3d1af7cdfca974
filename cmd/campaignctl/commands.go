package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/service/campaign"
)

var executedBy string

var executeCmd = &cobra.Command{
	Use:   "execute <campaign-id>",
	Short: "Deliver a campaign now and print its execution log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := instance.Campaigns.Execute(cmd.Context(), args[0], domain.ExecutionManual, executedBy)
		if entry != nil {
			if perr := printJSON(entry); perr != nil {
				return perr
			}
		}
		return err
	},
}

var (
	scheduleAt       string
	scheduleCivil    string
	scheduleTimezone string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <campaign-id>",
	Short: "Register a deferred execution",
	Long: `Register a deferred execution.

Use --at for an absolute RFC 3339 instant, or --civil with --tz for a
wall-clock time in an IANA zone. With neither, the campaign's stored
scheduled_at and scheduled_timezone are used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in campaign.ScheduleInput
		switch {
		case scheduleAt != "" && scheduleCivil != "":
			return fmt.Errorf("--at and --civil are mutually exclusive")
		case scheduleAt != "":
			t, err := time.Parse(time.RFC3339, scheduleAt)
			if err != nil {
				return fmt.Errorf("parse --at: %w", err)
			}
			in.FireAt = &t
		case scheduleCivil != "":
			in.Civil = scheduleCivil
			in.Timezone = scheduleTimezone
		}
		taskID, err := instance.Campaigns.Schedule(cmd.Context(), args[0], in)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"campaign_id": args[0], "task_id": taskID})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <campaign-id>",
	Short: "Remove every pending scheduled execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := instance.Campaigns.Cancel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"campaign_id": args[0], "removed": n})
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <campaign-id>",
	Short: "Preview audience size and remaining quota",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		est, err := instance.Campaigns.Estimate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(est)
	},
}

func init() {
	executeCmd.Flags().StringVar(&executedBy, "executed-by", "cli", "operator recorded on the execution log")
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", "fire time, RFC 3339")
	scheduleCmd.Flags().StringVar(&scheduleCivil, "civil", "", `wall-clock fire time, "2006-01-02 15:04[:05]"`)
	scheduleCmd.Flags().StringVar(&scheduleTimezone, "tz", "", "IANA zone for --civil (default UTC)")
}
