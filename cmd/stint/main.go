package main

import (
	"fmt"
	"os"

	"github.com/davrk/stint/internal/config"
	"github.com/davrk/stint/internal/project"
	"github.com/davrk/stint/internal/storage"
	"github.com/davrk/stint/internal/timer"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stint",
	Short: "stint - local pomodoro time tracker",
	Long:  `stint tracks time against named projects with a per-project countdown work-interval timer. All state is stored locally.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

func init() {
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(tuiCmd)
}

// app bundles the opened subsystems for a single CLI invocation.
type app struct {
	cfg      config.Config
	storage  *storage.Store
	projects *project.Store
	timers   *timer.Engine
}

// openApp wires storage, the project store and the timer engine together.
// The caller must Close when done.
func openApp(notifier timer.Notifier) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := storage.New(cfg.DBPath(), cfg.MirrorDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	projects, err := project.Open(st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open project store: %w", err)
	}

	timers, err := timer.Open(st, projects, timer.Options{
		DefaultIntervalSeconds: cfg.IntervalMinutes * 60,
		Notifier:               notifier,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open timer engine: %w", err)
	}

	return &app{cfg: cfg, storage: st, projects: projects, timers: timers}, nil
}

// Close tears down the timer engine and the storage layer.
func (a *app) Close() {
	a.timers.Shutdown()
	a.storage.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
