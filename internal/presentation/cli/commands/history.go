package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
	"github.com/jbctechsolutions/streamchat/internal/presentation/cli/output"
)

// transcriptView is the JSON shape of a saved transcript.
type transcriptView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Messages  []chat.Message `json:"messages,omitempty"`
	Count     int            `json:"message_count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func newTranscriptView(t *chat.Transcript, withMessages bool) transcriptView {
	v := transcriptView{
		ID:        t.ID,
		Title:     t.Title,
		Count:     t.MessageCount(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if withMessages {
		v.Messages = t.Messages
	}
	return v
}

// NewHistoryCmd creates the history command group for saved transcripts.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversation transcripts",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved transcripts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := transcriptStore()
			if err != nil {
				return err
			}
			transcripts, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("could not list transcripts: %w", err)
			}
			return renderTranscriptList(GetFormatter(), transcripts)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of transcripts (0 for all)")

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := transcriptStore()
			if err != nil {
				return err
			}
			t, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("could not load transcript: %w", err)
			}
			return renderTranscript(GetFormatter(), t)
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved transcript",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := transcriptStore()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("could not delete transcript: %w", err)
			}
			GetFormatter().Success("Deleted transcript %s", args[0])
			return nil
		},
	}
}

func transcriptStore() (ports.TranscriptStoragePort, error) {
	container := GetContainer()
	if container == nil {
		return nil, fmt.Errorf("application container not initialized")
	}
	store := container.TranscriptRepository()
	if store == nil {
		return nil, fmt.Errorf("transcript storage is disabled in the configuration")
	}
	return store, nil
}

func renderTranscriptList(f *output.Formatter, transcripts []*chat.Transcript) error {
	if f.Format() == output.FormatJSON {
		views := make([]transcriptView, 0, len(transcripts))
		for _, t := range transcripts {
			views = append(views, newTranscriptView(t, false))
		}
		return f.JSON(views)
	}

	if len(transcripts) == 0 {
		return f.Info("No saved transcripts")
	}

	rows := make([][]string, 0, len(transcripts))
	for _, t := range transcripts {
		rows = append(rows, []string{
			t.ID,
			t.Title,
			strconv.Itoa(t.MessageCount()),
			t.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return f.Table(output.TableData{
		Headers: []string{"ID", "TITLE", "MESSAGES", "UPDATED"},
		Rows:    rows,
	})
}

func renderTranscript(f *output.Formatter, t *chat.Transcript) error {
	if f.Format() == output.FormatJSON {
		return f.JSON(newTranscriptView(t, true))
	}

	title := t.Title
	if title == "" {
		title = t.ID
	}
	f.Header(title)
	f.Item("ID", t.ID)
	f.Item("Updated", t.UpdatedAt.Local().Format(time.RFC1123))
	f.Println("")

	for _, m := range t.Messages {
		f.Println("%s %s", f.Colorize(string(m.Role)+":", roleColor(m.Role)), m.Content)
	}
	return nil
}

func roleColor(role chat.MessageRole) output.Color {
	switch role {
	case chat.RoleUser:
		return output.ColorGreen
	case chat.RoleAssistant:
		return output.ColorCyan
	default:
		return output.ColorDim
	}
}
