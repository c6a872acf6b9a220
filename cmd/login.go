package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/pkg/clierr"
	"github.com/habedi/microfeed/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Stdin is read through these so tests can feed answers.
var inputReader = bufio.NewReader(os.Stdin)

var readPassword = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }

var errEmptyCredentials = clierr.New(clierr.Validation, "Username and password cannot be empty.", nil)

// loginCmd signs in and stores the session.
func loginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the feed",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if username == "" {
				cmd.Println("Please enter your username and password.")
				var err error
				if username, err = promptForInput(cmd, "Username: "); err != nil {
					return err
				}
			}
			password, err := promptForPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			if !validateCredentials(username, password) {
				return errEmptyCredentials
			}

			sess, err := a.api.SignIn(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			name := username
			if sess.User != nil && sess.User.Username != "" {
				name = sess.User.Username
			}
			log.Info().Str("user", name).Msg("Signed in")
			cmd.Printf("Signed in as %s.\n", name)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username to sign in with (prompted when empty)")

	return cmd
}

// registerCmd creates an account, then signs in with it.
func registerCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var err error
			if username == "" {
				if username, err = promptForInput(cmd, "Username: "); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = promptForInput(cmd, "Email: "); err != nil {
					return err
				}
			}
			password, err := promptForPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			if !validateCredentials(username, password) {
				return errEmptyCredentials
			}
			if err := validation.ValidateNonEmptyString("email", email); err != nil {
				return invalid(err)
			}

			in := client.RegisterInput{Username: username, Email: email, Password: password}
			if err := a.tokens.Register(cmd.Context(), in); err != nil {
				return err
			}
			if _, err := a.api.SignIn(cmd.Context(), username, password); err != nil {
				return err
			}
			cmd.Printf("Account %s created and signed in.\n", username)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username for the new account")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email for the new account")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.svc.SignOut(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Signed out.")
			return nil
		}),
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			user, err := a.api.Me(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.store.SetUser(cmd.Context(), user); err != nil {
				log.Warn().Err(err).Msg("Failed to store the user record")
			}
			cmd.Printf("ID: %s\nUsername: %s\n", user.ID, user.Username)
			if user.Email != "" {
				cmd.Printf("Email: %s\n", user.Email)
			}
			return nil
		}),
	}
}

// promptForInput prompts the user for input and returns the trimmed string.
func promptForInput(cmd *cobra.Command, prompt string) (string, error) {
	cmd.Print(prompt)
	input, err := inputReader.ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// promptForPassword reads a password without echoing it.
func promptForPassword(cmd *cobra.Command, prompt string) (string, error) {
	cmd.Print(prompt)
	password, err := readPassword()
	cmd.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(password)), nil
}

// validateCredentials checks if the username and password are not empty.
func validateCredentials(username, password string) bool {
	return username != "" && password != ""
}
