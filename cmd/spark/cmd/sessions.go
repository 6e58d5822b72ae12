package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/entrepeneur4lyf/spark/internal/markdown"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

const listTimeFormat = "2006-01-02 15:04"

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := repo.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No saved sessions.")
			return nil
		}
		t := newListTable("", "ID", "Title", "Updated", "Messages")
		for _, s := range sessions {
			marker := ""
			if s.ID == state.ActiveSession {
				marker = "*"
			}
			t.Row(marker, s.ID, s.Title, s.UpdatedAt.Local().Format(listTimeFormat), strconv.Itoa(len(s.Messages)))
		}
		fmt.Println(t.Render())
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session transcript",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := state.ActiveSession
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("no active session; pass a session id")
		}
		session, err := repo.GetSession(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", id, err)
		}

		processor, err := markdown.NewMessageProcessor()
		if err != nil {
			return err
		}
		for _, msg := range session.Messages {
			if chatRawMode {
				fmt.Printf("[%s] %s\n\n", msg.Role, msg.Text)
				continue
			}
			out, err := processor.FormatMessage(msg)
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
		return nil
	},
}

var sessionsUseCmd = &cobra.Command{
	Use:   "use <session-id>",
	Short: "Make a saved session the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := repo.GetSession(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to load session %s: %w", args[0], err)
		}
		return state.UpdateSession(cfg.StatePath(), args[0])
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its bookmarks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repo.DeleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		if state.ActiveSession == args[0] {
			return state.UpdateSession(cfg.StatePath(), "")
		}
		return nil
	},
}

var sessionsShareCmd = &cobra.Command{
	Use:   "share [session-id]",
	Short: "Print a share link for a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := state.ActiveSession
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("no active session; pass a session id")
		}
		fmt.Println(storage.ShareLink(cfg.ShareOrigin(), id))
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsUseCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsShareCmd)
	rootCmd.AddCommand(sessionsCmd)
}
