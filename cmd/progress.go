package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress [user-id]",
	Short: "Show training progress",
	Long: `progress summarizes training results across modules. Without an
argument it shows your own; managers can pass another user's id.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProgress,
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show organization-wide training analytics",
	RunE:  runAnalytics,
}

func init() {
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(analyticsCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.RequireAuth(); err != nil {
		return err
	}
	claims, err := rt.Claims()
	if err != nil {
		return fmt.Errorf("reading stored credential: %w", err)
	}

	userID := claims.UserID
	if len(args) == 1 && args[0] != claims.UserID {
		if !claims.IsManager() {
			return fmt.Errorf("viewing another user's progress needs manager access")
		}
		userID = args[0]
	}

	summary, err := rt.API.UserProgress(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Modules completed: %d of %d\n", summary.CompletedModules, summary.TotalModules)
	fmt.Printf("Average score: %.1f\n", summary.AverageScore)
	if len(summary.Modules) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tTITLE\tATTEMPTS\tBEST\tDONE")
	for _, module := range summary.Modules {
		done := ""
		if module.Completed {
			done = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%s\n",
			module.ModuleID, module.Title, module.Attempts, module.BestScore, done)
	}
	return w.Flush()
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	analytics, err := rt.API.Analytics(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Users: %d\n", analytics.TotalUsers)
	fmt.Printf("Modules: %d\n", analytics.TotalModules)
	fmt.Printf("Sessions: %d (%d completed)\n", analytics.TotalSessions, analytics.CompletedSessions)
	fmt.Printf("Average score: %.1f\n", analytics.AverageScore)

	if len(analytics.PopularModules) > 0 {
		fmt.Println("\nMost used modules:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODULE\tTITLE\tSESSIONS\tCOMPLETIONS\tAVG SCORE")
		for _, stat := range analytics.PopularModules {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f\n",
				stat.ModuleID, stat.Title, stat.Sessions, stat.Completions, stat.AvgScore)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
