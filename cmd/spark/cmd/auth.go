package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

var loginCmd = &cobra.Command{
	Use:       "login <google|github>",
	Short:     "Sign in with a mock identity provider",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(domain.ProviderGoogle), string(domain.ProviderGitHub)},
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := repo.Login(cmd.Context(), domain.Provider(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s <%s> via %s\n", user.Name, user.Email, user.Provider)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and start a new session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repo.Logout(cmd.Context()); err != nil {
			return err
		}
		if err := state.UpdateSession(cfg.StatePath(), ""); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := repo.GetUser(cmd.Context())
		if err != nil {
			return err
		}
		if user == nil {
			fmt.Println("Not signed in.")
			return nil
		}
		fmt.Printf("%s <%s> via %s\n", user.Name, user.Email, user.Provider)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
