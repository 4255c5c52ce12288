package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Run and manage per-project countdown timers",
}

var timerStartCmd = &cobra.Command{
	Use:   "start [project-id]",
	Short: "Run a countdown in the foreground (Ctrl+C pauses)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimerStart,
}

var timerCommitCmd = &cobra.Command{
	Use:   "commit [project-id]",
	Short: "Commit the pending partial interval of a paused timer",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimerCommit,
}

var timerResetCmd = &cobra.Command{
	Use:   "reset [project-id]",
	Short: "Reset a timer to its full interval",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimerReset,
}

var timerConfigureCmd = &cobra.Command{
	Use:   "configure [project-id] [minutes]",
	Short: "Set the interval length for a project's timer",
	Args:  cobra.ExactArgs(2),
	RunE:  runTimerConfigure,
}

var timerStatusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show a project's timer state",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimerStatus,
}

var resetForce bool

func init() {
	timerCmd.AddCommand(timerStartCmd, timerCommitCmd, timerResetCmd, timerConfigureCmd, timerStatusCmd)

	timerResetCmd.Flags().BoolVar(&resetForce, "force", false, "Discard unsaved partial time without asking")
}

func runTimerStart(cmd *cobra.Command, args []string) error {
	id := args[0]

	done := make(chan struct{})
	notifier := newTerminalNotifier(done)

	a, err := openApp(notifier)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.projects.Has(id) {
		return fmt.Errorf("no project %q", id)
	}

	a.timers.OnBeforeShutdown(func() {
		if a.timers.AnyRunning() {
			fmt.Println("\nPausing timer...")
		}
	})

	a.timers.Start(id)
	snap := a.timers.Snapshot(id)
	fmt.Printf("Timer for %q running: %s\n", id, formatClock(snap.Time))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
		// Interval completed and was committed.
	case <-sigs:
		a.timers.Stop(id)
		snap := a.timers.Snapshot(id)
		if snap.PendingPartialMinutes > 0 {
			fmt.Printf("\nPaused at %s. Pending partial: %d min. Run 'stint timer commit %s' to log it.\n",
				formatClock(snap.Time), snap.PendingPartialMinutes, id)
		} else {
			fmt.Println("\nPaused.")
		}
	}
	return nil
}

func runTimerCommit(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.timers.Snapshot(args[0])
	if err := a.timers.CommitPartial(args[0]); err != nil {
		return err
	}
	fmt.Printf("Committed %d min to %q; timer reset\n", snap.PendingPartialMinutes, args[0])
	return nil
}

func runTimerReset(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.timers.Reset(args[0], resetForce); err != nil {
		return fmt.Errorf("%w (use --force to discard)", err)
	}
	fmt.Printf("Timer for %q reset\n", args[0])
	return nil
}

func runTimerConfigure(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var minutes int64
	if _, err := fmt.Sscanf(args[1], "%d", &minutes); err != nil {
		return fmt.Errorf("parse minutes: %w", err)
	}
	if err := a.timers.Configure(args[0], minutes); err != nil {
		return err
	}
	fmt.Printf("Timer for %q set to %d min intervals\n", args[0], minutes)
	return nil
}

func runTimerStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.timers.Snapshot(args[0])
	state := "idle"
	switch {
	case snap.Running:
		state = "running"
	case snap.PendingPartialMinutes > 0:
		state = fmt.Sprintf("paused (%d min pending)", snap.PendingPartialMinutes)
	}
	fmt.Printf("%s: %s of %s, %s\n", args[0], formatClock(snap.Time), formatClock(snap.InitialTime), state)
	return nil
}

// formatClock renders seconds as MM:SS.
func formatClock(seconds int64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
