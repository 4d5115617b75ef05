package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("simcoach %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	fmt.Println("Configuration:")
	fmt.Printf("  Backend: %s\n", rt.Config.APIRoot())
	fmt.Printf("  Request timeout: %s\n", rt.Config.RequestTimeout)
	fmt.Printf("  Page size: %d\n", rt.Config.PageSize)
	fmt.Printf("  State dir: %s\n", rt.Config.StateDir)
	fmt.Printf("  Telemetry: %v\n", rt.Config.Telemetry.Enabled)

	if rt.Creds.Authenticated(time.Now()) {
		claims, err := rt.Claims()
		if err == nil {
			fmt.Printf("  Signed in as: %s (access level %d)\n", claims.UserID, claims.AccessLevel)
			return nil
		}
	}
	fmt.Println("  Signed in: no")
	return nil
}
