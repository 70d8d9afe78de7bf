package commands

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/streamchat/internal/application/conversation"
	"github.com/jbctechsolutions/streamchat/internal/domain/errors"
	"github.com/jbctechsolutions/streamchat/internal/presentation/cli/output"
)

// chatFlags holds the flags for the chat command.
type chatFlags struct {
	Resume     string
	SystemText string
	Limit      int
	NoStats    bool
}

var chatOpts chatFlags

// NewChatCmd creates the chat command for interactive REPL mode.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat REPL",
		Long: `Start an interactive chat session.

Replies are printed as they stream in. Only completed replies are kept in
the conversation; press Ctrl-C while a reply is streaming to stop it.

Special commands:
  /exit, /quit    - Exit the chat session
  /clear          - Clear conversation history
  /history        - Show conversation size and token budget
  /help           - Show help message

Examples:
  # Start a new conversation
  streamchat chat

  # Continue a saved transcript
  streamchat chat --resume 3f0c9a2e-...

  # Ask the server for at most 200 words per reply
  streamchat chat --limit 200`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().StringVarP(&chatOpts.Resume, "resume", "r", "",
		"transcript ID to continue (see 'streamchat history list')")
	cmd.Flags().StringVar(&chatOpts.SystemText, "system", "",
		"system text sent ahead of the conversation")
	cmd.Flags().IntVarP(&chatOpts.Limit, "limit", "l", 0,
		"reply length limit forwarded to the server (0 uses the config value)")
	cmd.Flags().BoolVar(&chatOpts.NoStats, "no-stats", false,
		"hide the summary line after each reply")

	return cmd
}

// runChat executes the interactive chat REPL.
func runChat(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application container not initialized")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	orch := container.NewOrchestrator()
	if chatOpts.Resume != "" {
		if err := orch.Resume(ctx, chatOpts.Resume); err != nil {
			return fmt.Errorf("could not resume transcript: %w", err)
		}
	}

	limit := chatOpts.Limit
	if limit == 0 {
		limit = container.Config().Conversation.Limit
	}

	formatter.Header("Chat Session")
	formatter.Item("Endpoint", container.Config().Endpoint)
	formatter.Item("Budget", fmt.Sprintf("%d tokens", orch.Budget()))
	if id := orch.TranscriptID(); id != "" {
		formatter.Item("Transcript", id)
		formatter.Item("Messages", fmt.Sprintf("%d", len(orch.History())))
	}
	if container.Validator() == nil {
		formatter.Warning("Certificate pinning is disabled")
	}
	formatter.Println("")
	formatter.Info("Type your message and press Enter. Type /help for commands.")
	formatter.Println("")

	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("could not create readline: %w", err)
	}
	defer rl.Close()

	restore := setInterruptHandler(orch.Cancel)
	defer restore()

	reply := output.NewExchangeOutput(
		output.WithExchangeWriter(formatter.Writer()),
		output.WithExchangeColor(formatter.ColorEnabled()),
		output.WithShowStats(!chatOpts.NoStats),
	)

	for {
		line, err := rl.Readline()
		if goerrors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if goerrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			shouldExit, err := handleChatCommand(line, orch, formatter)
			if err != nil {
				formatter.Error("Command error: %s", err.Error())
				continue
			}
			if shouldExit {
				break
			}
			continue
		}

		if err := streamReply(ctx, orch, line, chatOpts.SystemText, limit, reply); err != nil {
			formatter.Error("%s", describeExchangeError(err))
		}
	}

	if id := orch.TranscriptID(); id != "" {
		formatter.Info("Saved as transcript %s", id)
	}
	formatter.Info("Chat session ended. Goodbye!")
	return nil
}

// streamReply sends text and renders the reply as it streams. Errors from
// before the first delta are returned; failures mid-reply are rendered by
// out and not returned.
func streamReply(ctx context.Context, orch *conversation.Orchestrator, text, systemText string, limit int, out *output.ExchangeOutput) error {
	s, err := orch.SendMessage(ctx, text, systemText, limit)
	if err != nil {
		return err
	}
	defer s.Close()

	out.Start()
	for {
		delta, err := s.Recv()
		if goerrors.Is(err, io.EOF) {
			out.Complete()
			return nil
		}
		if err != nil {
			out.Fail(describeExchangeError(err))
			return nil
		}
		out.WriteDelta(delta)
	}
}

// describeExchangeError turns exchange failures into messages for people.
func describeExchangeError(err error) error {
	var overflow *errors.OverflowError
	var badStatus *errors.BadStatusError

	switch {
	case goerrors.As(err, &overflow):
		return fmt.Errorf("message too long: %d tokens with a budget of %d", overflow.Tokens, overflow.Budget)
	case goerrors.As(err, &badStatus):
		return badStatus
	case goerrors.Is(err, errors.ErrTrustRejected):
		return fmt.Errorf("server certificate is not pinned; refusing to connect")
	case goerrors.Is(err, context.Canceled):
		return fmt.Errorf("reply cancelled")
	case goerrors.Is(err, errors.ErrExchangeInFlight):
		return fmt.Errorf("a reply is still streaming")
	default:
		return err
	}
}

// handleChatCommand handles special chat commands.
// Returns (shouldExit, error).
func handleChatCommand(cmd string, orch *conversation.Orchestrator, f *output.Formatter) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch strings.ToLower(parts[0]) {
	case "/exit", "/quit":
		return true, nil

	case "/clear":
		if err := orch.ClearHistory(); err != nil {
			return false, err
		}
		f.Success("Conversation history cleared")
		return false, nil

	case "/history":
		f.Header("Conversation")
		f.Item("Messages", fmt.Sprintf("%d", len(orch.History())))
		f.Item("Budget", fmt.Sprintf("%d tokens", orch.Budget()))
		if id := orch.TranscriptID(); id != "" {
			f.Item("Transcript", id)
		}
		f.Println("")
		return false, nil

	case "/help":
		f.Header("Chat Commands")
		f.Item("/exit, /quit", "Exit the chat session")
		f.Item("/clear", "Clear conversation history")
		f.Item("/history", "Show conversation size and token budget")
		f.Item("/help", "Show this help message")
		f.Println("")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (type /help for help)", parts[0])
	}
}
