package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/simcoach/simcoach/internal/credential"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage trainees and their access",
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE:  runUsersList,
	}
	listCmd.Flags().String("filter", "all", "filter type (all, active, pending, deleted)")
	listCmd.Flags().String("search", "", "search by name or email (server-side)")
	listCmd.Flags().Int("page", 1, "page number")
	listCmd.Flags().Int("page-size", 0, "rows per page (default from config)")

	inviteCmd := &cobra.Command{
		Use:   "invite <email>[,<email>...]",
		Short: "Allow new users to sign up",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsersInvite,
	}
	inviteCmd.Flags().Int("level", 1, "access level granted on sign-up")

	accessCmd := &cobra.Command{
		Use:   "access <email> <level>",
		Short: "Change a user's access level",
		Args:  cobra.ExactArgs(2),
		RunE:  runUsersAccess,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsersDelete,
	}

	usersCmd.AddCommand(listCmd, inviteCmd, accessCmd, deleteCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	filter, _ := cmd.Flags().GetString("filter")
	search, _ := cmd.Flags().GetString("search")
	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize <= 0 {
		pageSize = rt.Config.PageSize
	}

	// Unlike chats and modules, the user endpoint searches server-side.
	users, err := rt.API.ListUsers(ctx, filter, search, page, pageSize)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tLEVEL\tROLE")
	for _, user := range users {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%d\t%s\n",
			user.UserID, user.FirstName, user.LastName, user.Email,
			user.AccessLevel, roleName(user.AccessLevel))
	}
	return w.Flush()
}

func runUsersInvite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	level, _ := cmd.Flags().GetInt("level")
	if err := rt.API.AddAllowedUsers(ctx, args[0], level); err != nil {
		return err
	}
	fmt.Printf("Invited %s at access level %d\n", args[0], level)
	return nil
}

func runUsersAccess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	level, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid access level: %s", args[1])
	}
	if err := rt.API.SetAccessLevel(ctx, args[0], level); err != nil {
		return err
	}
	fmt.Printf("Set %s to access level %d\n", args[0], level)
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireAdmin(rt); err != nil {
		return err
	}

	if err := rt.API.DeleteUser(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("User %s deleted\n", args[0])
	return nil
}

// requireAdmin gates destructive user operations on the decoded token.
// Like requireManager, it mirrors the backend's check, nothing more.
func requireAdmin(rt *Runtime) error {
	if err := rt.RequireAuth(); err != nil {
		return err
	}
	claims, err := rt.Claims()
	if err != nil {
		return fmt.Errorf("reading stored credential: %w", err)
	}
	if !claims.IsAdmin() {
		return fmt.Errorf("this operation needs admin access (level %d required, you have %d)",
			credential.AccessLevelAdmin, claims.AccessLevel)
	}
	return nil
}

func roleName(level int) string {
	switch {
	case level == credential.AccessLevelAdmin:
		return "admin"
	case level >= credential.AccessLevelManager:
		return "manager"
	default:
		return "trainee"
	}
}
