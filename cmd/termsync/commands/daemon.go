package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/termhub/termsync/logger"
	"github.com/termhub/termsync/schedule"
)

// DaemonCmd represents the daemon command
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the import scheduler and intake watcher",
	Long: `daemon — Run the import scheduler and intake watcher

Keeps the vocabulary in sync without operator action: subscription imports run
on the configured interval, and archives dropped into the intake directory are
imported as they appear.

Examples:
  termsync daemon
  termsync daemon --interval 60`,
	RunE: runDaemon,
}

var daemonIntervalFlag int

func init() {
	DaemonCmd.Flags().IntVar(&daemonIntervalFlag, "interval", 0, "Scheduler interval in minutes (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// heal any run left open by a crashed process before going resident
	if _, err := a.importer.IsRunning(ctx); err != nil {
		return err
	}

	interval := a.cfg.SchedulerInterval()
	if daemonIntervalFlag > 0 {
		interval = time.Duration(daemonIntervalFlag) * time.Minute
	}

	scheduler := schedule.NewScheduler(a.importer, a.subs, interval, logger.Logger)
	watcher := schedule.NewWatcher(a.importer, a.cfg.Import.IntakeDir, logger.Logger)

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if a.cfg.Scheduler.Enabled || daemonIntervalFlag > 0 {
			scheduler.Run(ctx)
		} else {
			logger.Logger.Info("Scheduler disabled; only watching intake directory")
			<-ctx.Done()
		}
	}()

	fmt.Println("termsync daemon running; Ctrl-C to stop")
	err = watcher.Run(ctx)
	// a watcher failure brings the scheduler down too instead of waiting for
	// a signal
	cancel()
	<-schedulerDone
	return err
}
