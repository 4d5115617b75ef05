package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/simcoach/simcoach/internal/api"
	"github.com/simcoach/simcoach/internal/listing"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List training sessions",
	Long: `chats lists training sessions, server-paginated and filtered by
status. --search matches within the fetched page only; paging through the
results is required to search the full history.`,
	RunE: runChats,
}

func init() {
	chatsCmd.Flags().String("status", "", "filter by status (open, in_progress, completed, closed)")
	chatsCmd.Flags().String("search", "", "match session ids within the fetched page")
	chatsCmd.Flags().Int("page", 1, "page number")
	chatsCmd.Flags().Int("page-size", 0, "rows per page (default from config)")
	rootCmd.AddCommand(chatsCmd)
}

func runChats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.RequireAuth(); err != nil {
		return err
	}

	status, _ := cmd.Flags().GetString("status")
	search, _ := cmd.Flags().GetString("search")
	page, _ := cmd.Flags().GetInt("page")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	if pageSize <= 0 {
		pageSize = rt.Config.PageSize
	}

	fetch := func(ctx context.Context, q listing.Query) (listing.Page[api.ChatSummary], error) {
		chats, err := rt.API.ListChats(ctx, q.Status, q.Page, q.PageSize)
		if err != nil {
			return listing.Page[api.ChatSummary]{}, err
		}
		return listing.Page[api.ChatSummary]{
			Rows:       chats.Chats,
			Page:       chats.Page,
			PageSize:   chats.PageSize,
			TotalCount: chats.TotalCount,
		}, nil
	}

	state, err := fetchPage(ctx, listing.Config[api.ChatSummary]{
		Fetch:    fetch,
		Match:    matchChat,
		Logger:   rt.Logger,
		Status:   status,
		PageSize: pageSize,
	}, page, search)
	if err != nil {
		return err
	}

	if len(state.Rows) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAT\tMODULE\tSTATUS\tATTEMPT\tSTARTED")
	for _, chat := range state.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			chat.ChatID, chat.AgentID, chat.Status, chat.CurrentVersion, formatTime(chat.StartedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nPage %d, %d sessions total\n", state.Page, state.TotalCount)
	if search != "" {
		fmt.Println("Note: --search matched within this page only.")
	}
	return nil
}

func matchChat(chat api.ChatSummary, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(chat.ChatID), needle) ||
		strings.Contains(strings.ToLower(chat.AgentID), needle)
}

// fetchPage drives one synchronous load through a listing controller: the
// search text is committed without debounce, the requested page is fetched
// and the final state returned.
func fetchPage[T any](ctx context.Context, cfg listing.Config[T], page int, search string) (listing.State[T], error) {
	updates := make(chan listing.State[T], 4)
	cfg.OnUpdate = func(s listing.State[T]) { updates <- s }
	cfg.Debounce = time.Millisecond

	controller, err := listing.New(cfg)
	if err != nil {
		return listing.State[T]{}, err
	}
	defer controller.Close()

	if search != "" {
		controller.Search(ctx, search)
	}
	if page > 1 {
		controller.SetPage(ctx, page)
	} else if search == "" {
		controller.Load(ctx)
	}

	deadline := time.After(30 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.Loading {
				continue
			}
			// With a search pending, wait for the update that carries it.
			if search != "" && state.Search != search {
				continue
			}
			if state.Err != nil {
				return state, fmt.Errorf("fetching list: %w", state.Err)
			}
			return state, nil
		case <-deadline:
			return listing.State[T]{}, fmt.Errorf("timed out fetching list")
		case <-ctx.Done():
			return listing.State[T]{}, ctx.Err()
		}
	}
}

// formatTime renders timestamps the way humans read recency.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
