package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/app"
)

var queueWorkersFlag int

// carepath queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		if queueWorkersFlag > 0 {
			config.Override(map[string]string{"QUEUE_WORKERS": strconv.Itoa(queueWorkersFlag)})
		}
		a, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Printf("🚀 Queue worker started (%d workers). Press Ctrl+C to stop.\n", config.QueueWorkers())
		if err := a.RunWorkers(ctx); err != nil {
			return err
		}
		fmt.Println("\n⚡ Queue worker stopped.")
		return nil
	},
}

// carepath queue:retry <id>
var queueRetryCmd = &cobra.Command{
	Use:   "queue:retry <failed-job-id>",
	Short: "Push a failed job back onto the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}
		a, err := app.Boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Queue.Retry(cmd.Context(), uint(id)); err != nil {
			return err
		}
		fmt.Printf("✅ Job %d queued again\n", id)
		return nil
	},
}

// carepath schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Start the task scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Registered scheduled tasks:")
		for _, e := range a.Scheduler.Entries() {
			fmt.Printf("  • %-20s %s\n", e.Name, e.Spec)
		}

		fmt.Println("🕐 Scheduler started. Press Ctrl+C to stop.")
		a.RunScheduler(ctx)
		fmt.Println("\n⚡ Scheduler stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 0, "Number of concurrent workers (default QUEUE_WORKERS)")
}
