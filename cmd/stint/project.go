package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/davrk/stint/internal/models"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a new project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectAdd,
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename [id] [new-name]",
	Short: "Rename a project (the identifier is unchanged)",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectRename,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a project and its commit history",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectList,
}

var projectSetCmd = &cobra.Command{
	Use:   "set [id]",
	Short: "Set a project's time budget and deadline",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectSet,
}

var commitCmd = &cobra.Command{
	Use:   "commit [project-id] [minutes]",
	Short: "Log minutes against a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommit,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect and amend commit history",
}

var logShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project's commit history",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogShow,
}

var logEditCmd = &cobra.Command{
	Use:   "edit [project-id] [committed-at-ms]",
	Short: "Amend a commit's amount or timestamp",
	Args:  cobra.ExactArgs(2),
	RunE:  runLogEdit,
}

var (
	setBudget   int64
	setDeadline string
	commitAt    string
	editAmount  float64
	editMoveTo  int64
)

func init() {
	projectCmd.AddCommand(projectAddCmd, projectRenameCmd, projectDeleteCmd, projectListCmd, projectSetCmd)
	logCmd.AddCommand(logShowCmd, logEditCmd)

	projectSetCmd.Flags().Int64Var(&setBudget, "budget", -1, "Target minutes (display only)")
	projectSetCmd.Flags().StringVar(&setDeadline, "deadline", "", "Target date, YYYY-MM-DD (display only)")

	commitCmd.Flags().StringVar(&commitAt, "at", "", "Backdate the commit, YYYY-MM-DD HH:MM (default: now)")

	logEditCmd.Flags().Float64Var(&editAmount, "amount", 0, "New amount in minutes (required)")
	logEditCmd.Flags().Int64Var(&editMoveTo, "move-to", 0, "New committed-at timestamp, epoch ms")
	logEditCmd.MarkFlagRequired("amount")
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.projects.AddProject(args[0]); err != nil {
		return err
	}
	fmt.Printf("Project %q created\n", args[0])
	return nil
}

func runProjectRename(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.projects.Has(args[0]) {
		return fmt.Errorf("no project %q", args[0])
	}
	if err := a.projects.RenameProject(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Project %q renamed to %q\n", args[0], args[1])
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.projects.DeleteProject(args[0]); err != nil {
		return err
	}
	fmt.Printf("Project %q deleted\n", args[0])
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	doc := a.projects.Export()
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tTIME\tCOMMITS\tBUDGET\tUPDATED")
	for _, id := range ids {
		p := doc[id]
		budget := "-"
		if pct, ok := p.BudgetPercent(); ok {
			budget = fmt.Sprintf("%d (%.0f%%)", *p.TimeBudget, pct)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			p.Name, formatMinutes(p.Time), len(p.Commits), budget,
			time.UnixMilli(p.UpdatedAt).Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runProjectSet(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.projects.Has(args[0]) {
		return fmt.Errorf("no project %q", args[0])
	}

	var budget *int64
	if cmd.Flags().Changed("budget") {
		budget = &setBudget
	}
	var deadline *models.Millis
	if setDeadline != "" {
		t, err := time.ParseInLocation("2006-01-02", setDeadline, time.Local)
		if err != nil {
			return fmt.Errorf("parse deadline: %w", err)
		}
		ms := t.UnixMilli()
		deadline = &ms
	}
	if budget == nil && deadline == nil {
		return fmt.Errorf("nothing to set: pass --budget and/or --deadline")
	}

	if err := a.projects.EditProjectSettings(args[0], budget, deadline); err != nil {
		return err
	}
	fmt.Printf("Project %q settings updated\n", args[0])
	return nil
}

func runCommit(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.projects.Has(args[0]) {
		return fmt.Errorf("no project %q", args[0])
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("parse minutes: %w", err)
	}

	var at *models.Millis
	if commitAt != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04", commitAt, time.Local)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		ms := t.UnixMilli()
		at = &ms
	}

	if err := a.projects.CommitTime(args[0], amount, at); err != nil {
		return err
	}
	fmt.Printf("Committed %d min to %q\n", models.NormalizeMinutes(amount), args[0])
	return nil
}

func runLogShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.projects.Get(args[0])
	if p == nil {
		return fmt.Errorf("no project %q", args[0])
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMMITTED AT\tEPOCH MS\tAMOUNT")
	for _, c := range p.Commits {
		fmt.Fprintf(w, "%s\t%d\t%s\n",
			time.UnixMilli(c.CommittedAt).Format("2006-01-02 15:04"),
			c.CommittedAt, formatMinutes(c.Amount))
	}
	fmt.Fprintf(w, "TOTAL\t\t%s\n", formatMinutes(p.Time))
	return w.Flush()
}

func runLogEdit(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	committedAt, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse committed-at: %w", err)
	}

	var moveTo *models.Millis
	if cmd.Flags().Changed("move-to") {
		moveTo = &editMoveTo
	}

	if err := a.projects.EditCommit(args[0], committedAt, editAmount, moveTo); err != nil {
		return err
	}
	fmt.Println("Commit updated")
	return nil
}

// formatMinutes renders a minute count as "3h 25m" or "45m".
func formatMinutes(m int64) string {
	if m >= 60 {
		return fmt.Sprintf("%dh %02dm", m/60, m%60)
	}
	return fmt.Sprintf("%dm", m)
}
