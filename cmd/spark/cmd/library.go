package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

var appsOutput string

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// newListTable builds the borderless table used by the list commands
func newListTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "List bookmarked answers, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bookmarks, err := repo.ListBookmarks(cmd.Context())
		if err != nil {
			return err
		}
		if len(bookmarks) == 0 {
			fmt.Println("No bookmarks.")
			return nil
		}
		t := newListTable("Message", "Question", "Saved")
		for _, b := range bookmarks {
			t.Row(b.MessageID, b.Question, b.Timestamp.Local().Format(listTimeFormat))
		}
		fmt.Println(t.Render())
		return nil
	},
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <message-id> [session-id]",
	Short: "Toggle the bookmark on a model reply",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := state.ActiveSession
		if len(args) == 2 {
			sessionID = args[1]
		}
		on, err := repo.ToggleBookmark(cmd.Context(), sessionID, args[0])
		if err != nil {
			return err
		}
		if on {
			fmt.Println("Bookmarked.")
		} else {
			fmt.Println("Bookmark removed.")
		}
		return nil
	},
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List saved apps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		apps, err := repo.ListApps(cmd.Context())
		if err != nil {
			return err
		}
		if len(apps) == 0 {
			fmt.Println("No saved apps. Bookmark a reply that contains an HTML app to save one.")
			return nil
		}
		t := newListTable("ID", "Title", "Type", "Created")
		for _, a := range apps {
			t.Row(a.ID, a.Title, string(a.Type), a.CreatedAt.Local().Format(listTimeFormat))
		}
		fmt.Println(t.Render())
		return nil
	},
}

var appsShowCmd = &cobra.Command{
	Use:   "show <app-id>",
	Short: "Print or export the HTML of a saved app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := repo.GetApp(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load app %s: %w", args[0], err)
		}
		if appsOutput == "" {
			fmt.Println(item.Code)
			return nil
		}
		return exportApp(item, appsOutput)
	},
}

func exportApp(item *domain.AppItem, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(item.Code), 0644); err != nil {
		return fmt.Errorf("failed to write app %s: %w", path, err)
	}
	fmt.Printf("Saved %q to %s\n", item.Title, path)
	return nil
}

func init() {
	appsShowCmd.Flags().StringVarP(&appsOutput, "output", "o", "", "Write the HTML to a file")
	appsCmd.AddCommand(appsShowCmd)

	rootCmd.AddCommand(bookmarksCmd)
	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(appsCmd)
}
