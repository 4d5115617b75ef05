package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/simcoach/simcoach/internal/api"
	"github.com/simcoach/simcoach/internal/credential"
	"github.com/simcoach/simcoach/internal/listing"
	"github.com/simcoach/simcoach/internal/rest"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Manage training modules",
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List training modules",
		RunE:  runModulesList,
	}
	listCmd.Flags().Bool("deleted", false, "include soft-deleted modules")
	listCmd.Flags().String("search", "", "match titles within the fetched page")
	listCmd.Flags().Int("page", 1, "page number")
	listCmd.Flags().Int("page-size", 0, "rows per page (default from config)")

	showCmd := &cobra.Command{
		Use:   "show <module-id>",
		Short: "Show one module with its reference documents",
		Args:  cobra.ExactArgs(1),
		RunE:  runModulesShow,
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a training module",
		RunE:  runModulesCreate,
	}
	createCmd.Flags().String("title", "", "module title (required)")
	createCmd.Flags().String("prompt", "", "system prompt driving the simulated customer (required)")
	createCmd.Flags().StringSlice("criterion", nil, "evaluation criterion (repeatable)")
	createCmd.Flags().String("pdf", "", "PDF reference document to attach")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("prompt")

	editCmd := &cobra.Command{
		Use:   "edit <module-id>",
		Short: "Update a module's fields",
		Args:  cobra.ExactArgs(1),
		RunE:  runModulesEdit,
	}
	editCmd.Flags().String("title", "", "new title")
	editCmd.Flags().String("prompt", "", "new system prompt")
	editCmd.Flags().StringSlice("criterion", nil, "replacement evaluation criterion (repeatable)")
	editCmd.Flags().String("pdf", "", "PDF reference document to attach")

	deleteCmd := &cobra.Command{
		Use:   "delete <module-id>",
		Short: "Soft-delete a module",
		Args:  cobra.ExactArgs(1),
		RunE:  runModulesDelete,
	}

	detachCmd := &cobra.Command{
		Use:   "detach <module-id> <resource-id>",
		Short: "Remove a reference document from a module",
		Args:  cobra.ExactArgs(2),
		RunE:  runModulesDetach,
	}

	modulesCmd.AddCommand(listCmd, showCmd, createCmd, editCmd, deleteCmd, detachCmd)
	rootCmd.AddCommand(modulesCmd)
}

func runModulesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.RequireAuth(); err != nil {
		return err
	}

	includeDeleted, _ := cmd.Flags().GetBool("deleted")
	search, _ := cmd.Flags().GetString("search")
	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize <= 0 {
		pageSize = rt.Config.PageSize
	}

	fetch := func(ctx context.Context, q listing.Query) (listing.Page[api.Module], error) {
		modules, err := rt.API.ListModules(ctx, includeDeleted, q.Page, q.PageSize)
		if err != nil {
			return listing.Page[api.Module]{}, err
		}
		return listing.Page[api.Module]{
			Rows:       modules.Modules,
			Page:       modules.Page,
			PageSize:   modules.PageSize,
			TotalCount: modules.TotalCount,
		}, nil
	}

	state, err := fetchPage(ctx, listing.Config[api.Module]{
		Fetch:    fetch,
		Match:    matchModule,
		Logger:   rt.Logger,
		PageSize: pageSize,
	}, page, search)
	if err != nil {
		return err
	}

	if len(state.Rows) == 0 {
		fmt.Println("No modules found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tTITLE\tCRITERIA\tSTATE")
	for _, module := range state.Rows {
		moduleState := "active"
		if module.IsDeleted {
			moduleState = "deleted"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			module.AgentID, module.Title, len(module.Criteria), moduleState)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nPage %d, %d modules total\n", state.Page, state.TotalCount)
	return nil
}

func matchModule(module api.Module, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(module.Title), needle) ||
		strings.Contains(strings.ToLower(module.AgentID), needle)
}

func runModulesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.RequireAuth(); err != nil {
		return err
	}

	module, err := rt.API.Module(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Module: %s\n", module.AgentID)
	fmt.Printf("Title: %s\n", module.Title)
	fmt.Printf("System prompt:\n  %s\n", strings.ReplaceAll(module.SystemPrompt, "\n", "\n  "))
	if len(module.Criteria) > 0 {
		fmt.Println("Evaluation criteria:")
		for _, criterion := range module.Criteria {
			fmt.Printf("  - %s\n", criterion)
		}
	}

	resources, err := rt.API.ModuleResources(ctx, module.AgentID)
	if err != nil {
		rt.Logger.Warn("listing module resources failed", "agent_id", module.AgentID, "error", err)
		return nil
	}
	if len(resources) > 0 {
		fmt.Println("Reference documents:")
		for _, resource := range resources {
			fmt.Printf("  %s  %s\n", resource.ID, resource.Title)
		}
	}
	return nil
}

func runModulesCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	draft, pdf, err := moduleDraftFromFlags(cmd)
	if err != nil {
		return err
	}

	module, err := rt.API.CreateModule(ctx, draft, pdf)
	if err != nil {
		return err
	}
	fmt.Printf("Module %s created\n", module.AgentID)
	return nil
}

func runModulesEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	draft, pdf, err := moduleDraftFromFlags(cmd)
	if err != nil {
		return err
	}
	if draft.Title == "" && draft.SystemPrompt == "" && len(draft.Criteria) == 0 && pdf == nil {
		return fmt.Errorf("nothing to change, pass at least one of --title, --prompt, --criterion, --pdf")
	}

	module, err := rt.API.EditModule(ctx, args[0], draft, pdf)
	if err != nil {
		return err
	}
	fmt.Printf("Module %s updated\n", module.AgentID)
	return nil
}

func runModulesDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	if err := rt.API.DeleteModule(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Module %s deleted\n", args[0])
	return nil
}

func runModulesDetach(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := requireManager(rt); err != nil {
		return err
	}

	if err := rt.API.DeleteModuleResource(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Resource %s removed from module %s\n", args[1], args[0])
	return nil
}

// moduleDraftFromFlags builds the writable fields and the optional PDF
// attachment from command flags.
func moduleDraftFromFlags(cmd *cobra.Command) (api.ModuleDraft, *rest.FileField, error) {
	title, _ := cmd.Flags().GetString("title")
	prompt, _ := cmd.Flags().GetString("prompt")
	criteria, _ := cmd.Flags().GetStringSlice("criterion")
	pdfPath, _ := cmd.Flags().GetString("pdf")

	draft := api.ModuleDraft{
		Title:        title,
		SystemPrompt: prompt,
		Criteria:     criteria,
	}

	if pdfPath == "" {
		return draft, nil, nil
	}
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		return draft, nil, fmt.Errorf("reading pdf: %w", err)
	}
	return draft, &rest.FileField{
		Field:    "pdf_file",
		Filename: filepath.Base(pdfPath),
		Content:  bytes.NewReader(content),
	}, nil
}

// requireManager gates write operations on the decoded token's access
// level. This mirrors what the backend enforces; it only saves a round
// trip, it is not a security boundary.
func requireManager(rt *Runtime) error {
	if err := rt.RequireAuth(); err != nil {
		return err
	}
	claims, err := rt.Claims()
	if err != nil {
		return fmt.Errorf("reading stored credential: %w", err)
	}
	if !claims.IsManager() {
		return fmt.Errorf("this operation needs manager access (level %d required, you have %d)",
			credential.AccessLevelManager, claims.AccessLevel)
	}
	return nil
}
