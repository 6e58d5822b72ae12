package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrepeneur4lyf/spark/internal/chat"
	"github.com/entrepeneur4lyf/spark/internal/domain"
	"github.com/entrepeneur4lyf/spark/internal/imagegen"
	"github.com/entrepeneur4lyf/spark/internal/markdown"
)

var (
	chatImage   string
	chatNew     bool
	chatSize    string
	chatRawMode bool
)

var chatCmd = &cobra.Command{
	Use:         "chat [message]",
	Short:       "Send one message in the active session",
	Args:        cobra.ArbitraryArgs,
	Annotations: map[string]string{annotationModel: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		orch := sparkApp.Chat

		if err := activateRemembered(cmd, chatNew); err != nil {
			return err
		}

		req := chat.TurnRequest{
			SessionID: orch.ActiveSession(),
			Text:      strings.Join(args, " "),
			Settings:  domain.ImageSettings{Size: state.ImageSize},
		}
		if chatSize != "" {
			size, err := parseImageSize(chatSize)
			if err != nil {
				return err
			}
			req.Settings.Size = size
			state.ImageSize = size
		}
		if chatImage != "" {
			uri, err := readImageFile(chatImage)
			if err != nil {
				return err
			}
			req.Image = uri
		}

		res, err := orch.SendTurn(ctx, req)
		if err != nil && !errors.Is(err, chat.ErrStaleTurn) {
			return err
		}
		if err := state.UpdateSession(cfg.StatePath(), res.SessionID); err != nil {
			logger.Warn("Failed to save state", "error", err)
		}
		return printReply(res)
	},
}

var regenerateCmd = &cobra.Command{
	Use:         "regenerate",
	Short:       "Produce a new answer for the last question",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationModel: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := activateRemembered(cmd, false); err != nil {
			return err
		}
		res, err := sparkApp.Chat.Regenerate(cmd.Context(), sparkApp.Chat.ActiveSession())
		if err != nil && !errors.Is(err, chat.ErrStaleTurn) {
			return err
		}
		return printReply(res)
	},
}

// activateRemembered restores the session saved in the state file, or
// starts a new one.
func activateRemembered(cmd *cobra.Command, fresh bool) error {
	orch := sparkApp.Chat
	if fresh || state.ActiveSession == "" {
		orch.NewSession()
		return nil
	}
	session, err := orch.Activate(cmd.Context(), state.ActiveSession)
	if err != nil {
		return fmt.Errorf("failed to restore session %s: %w", state.ActiveSession, err)
	}
	if session == nil {
		logger.Debug("Remembered session has no saved messages", "session", state.ActiveSession)
	}
	return nil
}

func printReply(res *chat.TurnResult) error {
	if res == nil {
		return nil
	}
	out := res.Reply.Text
	if !chatRawMode {
		processor, err := markdown.NewMessageProcessor()
		if err != nil {
			return err
		}
		if out, err = processor.FormatMessage(res.Reply); err != nil {
			return err
		}
	}
	fmt.Println(out)
	for _, d := range res.Diagnostics {
		logger.Debug("Response diagnostic", "detail", d.String())
	}
	return res.Err
}

func parseImageSize(s string) (domain.ImageSize, error) {
	switch size := domain.ImageSize(strings.ToUpper(s)); size {
	case domain.ImageSize1K, domain.ImageSize2K, domain.ImageSize4K:
		return size, nil
	}
	return "", fmt.Errorf("image size must be 1K, 2K or 4K, got %q", s)
}

// readImageFile loads an image from disk as a data URI
func readImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	img := &imagegen.Image{MIMEType: mimeType, Data: data}
	return img.DataURI(), nil
}

func init() {
	chatCmd.Flags().StringVarP(&chatImage, "image", "i", "", "Attach an image file")
	chatCmd.Flags().BoolVarP(&chatNew, "new", "n", false, "Start a new session")
	chatCmd.Flags().StringVar(&chatSize, "size", "", "Generated image size (1K, 2K, 4K)")
	rootCmd.PersistentFlags().BoolVar(&chatRawMode, "raw", false, "Print replies without rendering")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(regenerateCmd)
}
