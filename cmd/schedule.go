package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aeroshield/stormrisk-cli/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the daily analysis schedule on Temporal",
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the daily analysis cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		c, err := schedule.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := schedule.CreateSchedule(ctx, c, cfg.Temporal.TaskQueue, cfg.Temporal.CronUTC); err != nil {
			return err
		}
		fmt.Printf("created schedule %s (cron %q, UTC)\n", schedule.ScheduleID, cfg.Temporal.CronUTC)
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the daily analysis cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		c, err := schedule.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := schedule.DeleteSchedule(ctx, c); err != nil {
			return err
		}
		fmt.Printf("deleted schedule %s\n", schedule.ScheduleID)
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	rootCmd.AddCommand(scheduleCmd)
}
