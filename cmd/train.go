package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simcoach/simcoach/internal/api"
	"github.com/simcoach/simcoach/internal/state"
	"github.com/simcoach/simcoach/internal/training"
)

var trainCmd = &cobra.Command{
	Use:   "train [module-id]",
	Short: "Start or resume a training session",
	Long: `train opens an interactive session with the AI-simulated customer of
the given module. An unfinished session for the module is resumed with its
full transcript; otherwise a new one is created. Without an argument the
most recently trained module is resumed.

In-session commands:
  /complete <score>  Finish the attempt with a 0-10 score
  /close             Put the session aside (resume later with /reopen)
  /reopen            Resume a closed session
  /restart           Start a fresh attempt, keeping prior history
  /recover           Rebuild the session from the server
  /status            Show status and progress
  /quit              Leave the REPL (the session stays as it is)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
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

	engine, err := rt.Engine()
	if err != nil {
		return err
	}

	lastModule, err := state.New(rt.Config.StateDir)
	if err != nil {
		return err
	}
	var agentID string
	if len(args) == 1 {
		agentID = args[0]
	} else {
		agentID, err = lastModule.LastModule()
		if err != nil {
			return err
		}
		if agentID == "" {
			return fmt.Errorf("no previous module to resume, run \"simcoach train <module-id>\"")
		}
	}
	title := rt.API.ModuleTitle(ctx, agentID)

	session, err := engine.Initialize(ctx, agentID, claims.UserID)
	if err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}
	if err := lastModule.SaveLastModule(agentID); err != nil {
		rt.Logger.Warn("failed to record last module", "error", err)
	}

	fmt.Printf("Training module: %s\n", title)
	fmt.Printf("Session %s, attempt %d\n", session.ChatID, session.CurrentVersion)
	fmt.Println("Type /help for in-session commands, Ctrl+D to leave.")
	fmt.Println()
	printTranscript(session.Current())

	repl := &trainREPL{engine: engine, session: session, out: os.Stdout}
	return repl.run(ctx)
}

// trainREPL holds the conversation loop state. The session field always
// points at the latest applied copy.
type trainREPL struct {
	engine  *training.Engine
	session *training.Session
	out     io.Writer
}

func (r *trainREPL) run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(r.out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out, "\nSession kept, see you next time.")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if r.handleCommand(ctx, input) {
				break
			}
			continue
		}
		r.send(ctx, input)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func (r *trainREPL) send(ctx context.Context, text string) {
	// The indicator line is cleared whether the exchange succeeds or not.
	fmt.Fprint(r.out, "customer is typing...")
	updated, reply, err := r.engine.SendMessage(ctx, r.session, text)
	fmt.Fprint(r.out, "\r\033[K")

	r.session = updated
	if err != nil {
		switch {
		case errors.Is(err, training.ErrSessionClosed):
			fmt.Fprintln(r.out, "This session is closed. Use /reopen to continue it.")
		case errors.Is(err, training.ErrSessionCompleted):
			fmt.Fprintln(r.out, "This attempt is completed. Use /restart for a new one.")
		default:
			fmt.Fprintf(r.out, "Message not delivered (%v). It is kept locally; /recover reloads the server state.\n", err)
		}
		return
	}

	fmt.Fprintf(r.out, "customer> %s\n", reply.Content)
	version := r.session.Current()
	fmt.Fprintf(r.out, "          [progress %d%%]\n", version.Progress)
}

// handleCommand executes a slash command, returning true to leave the REPL.
func (r *trainREPL) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/help":
		fmt.Fprintln(r.out, "  /complete <score>  finish the attempt with a 0-10 score")
		fmt.Fprintln(r.out, "  /close             put the session aside")
		fmt.Fprintln(r.out, "  /reopen            resume a closed session")
		fmt.Fprintln(r.out, "  /restart           start a fresh attempt")
		fmt.Fprintln(r.out, "  /recover           rebuild the session from the server")
		fmt.Fprintln(r.out, "  /status            show status and progress")
		fmt.Fprintln(r.out, "  /quit              leave")

	case "/status":
		version := r.session.Current()
		fmt.Fprintf(r.out, "attempt %d: %s, progress %d%%", r.session.CurrentVersion, version.Status, version.Progress)
		if version.Score != nil {
			fmt.Fprintf(r.out, ", score %.1f", *version.Score)
		}
		fmt.Fprintln(r.out)

	case "/complete":
		if len(parts) != 2 {
			fmt.Fprintln(r.out, "usage: /complete <score 0-10>")
			return false
		}
		score, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			fmt.Fprintf(r.out, "not a number: %s\n", parts[1])
			return false
		}
		updated, err := r.engine.Complete(ctx, r.session, score)
		if err != nil {
			fmt.Fprintf(r.out, "cannot complete: %v\n", err)
			return false
		}
		r.session = updated
		fmt.Fprintf(r.out, "Attempt completed with score %.1f. /restart begins a new one.\n", score)

	case "/close":
		updated, err := r.engine.Close(ctx, r.session)
		if err != nil {
			fmt.Fprintf(r.out, "cannot close: %v\n", err)
			return false
		}
		r.session = updated
		fmt.Fprintln(r.out, "Session closed. /reopen continues it later.")

	case "/reopen":
		updated, err := r.engine.Reopen(ctx, r.session)
		if err != nil {
			fmt.Fprintf(r.out, "cannot reopen: %v\n", err)
			return false
		}
		r.session = updated
		fmt.Fprintln(r.out, "Session reopened.")

	case "/restart":
		updated, err := r.engine.Restart(ctx, r.session)
		if err != nil {
			fmt.Fprintf(r.out, "cannot restart: %v\n", err)
			return false
		}
		r.session = updated
		fmt.Fprintf(r.out, "Fresh attempt %d started.\n", r.session.CurrentVersion)
		printTranscript(r.session.Current())

	case "/recover":
		recovered, err := r.engine.Recover(ctx, r.session.AgentID, r.session.UserID)
		if err != nil {
			fmt.Fprintf(r.out, "recovery failed: %v\n", err)
			return false
		}
		r.session = recovered
		fmt.Fprintln(r.out, "Session rebuilt from the server.")
		printTranscript(r.session.Current())

	case "/quit", "/exit":
		fmt.Fprintln(r.out, "Session kept, see you next time.")
		return true

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (try /help)\n", parts[0])
	}
	return false
}

// printTranscript renders an attempt's messages. System messages carry the
// scenario setup and are never shown as conversation.
func printTranscript(version *training.Version) {
	printed := 0
	for _, msg := range version.Messages {
		switch msg.Role {
		case api.RoleSystem:
			continue
		case api.RoleUser:
			marker := ""
			if msg.Pending {
				marker = " (unconfirmed)"
			}
			fmt.Printf("you> %s%s\n", msg.Content, marker)
		default:
			fmt.Printf("customer> %s\n", msg.Content)
		}
		printed++
	}
	if printed > 0 {
		fmt.Println()
	}
}
