package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simcoach/simcoach/internal/api"
	"github.com/simcoach/simcoach/internal/credential"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored access token",
	RunE:  runLogout,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE:  runSignup,
}

func init() {
	loginCmd.Flags().String("email", "", "account email (prompted when omitted)")
	loginCmd.Flags().String("password", "", "account password (prompted when omitted)")
	signupCmd.Flags().String("email", "", "account email (prompted when omitted)")
	signupCmd.Flags().String("password", "", "account password (prompted when omitted)")
	signupCmd.Flags().String("first-name", "", "first name (prompted when omitted)")
	signupCmd.Flags().String("last-name", "", "last name (prompted when omitted)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(signupCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	email, password, err := promptCredentials(cmd)
	if err != nil {
		return err
	}

	token, err := rt.API.SignIn(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}
	if err := rt.Creds.Save(token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	claims, err := credential.DecodeClaims(token)
	if err == nil {
		fmt.Printf("Signed in as %s (access level %d)\n", claims.UserID, claims.AccessLevel)
	} else {
		fmt.Println("Signed in")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.Creds.Clear(); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	fmt.Println("Signed out")
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	firstName, err := flagOrPrompt(cmd, "first-name", "First name: ")
	if err != nil {
		return err
	}
	lastName, err := flagOrPrompt(cmd, "last-name", "Last name: ")
	if err != nil {
		return err
	}
	email, password, err := promptCredentials(cmd)
	if err != nil {
		return err
	}

	token, err := rt.API.SignUp(ctx, api.SignUpRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
	})
	if err != nil {
		return fmt.Errorf("sign-up failed: %w", err)
	}
	if err := rt.Creds.Save(token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	fmt.Println("Account created, you are signed in")
	return nil
}

func promptCredentials(cmd *cobra.Command) (email, password string, err error) {
	email, err = flagOrPrompt(cmd, "email", "Email: ")
	if err != nil {
		return "", "", err
	}
	password, err = flagOrPrompt(cmd, "password", "Password: ")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

// flagOrPrompt reads a flag value, falling back to an interactive prompt
// on stdin when the flag is empty.
func flagOrPrompt(cmd *cobra.Command, flag, prompt string) (string, error) {
	value, err := cmd.Flags().GetString(flag)
	if err != nil {
		return "", err
	}
	if value != "" {
		return value, nil
	}

	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", flag, err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s must not be empty", flag)
	}
	return line, nil
}
