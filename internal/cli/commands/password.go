package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/auth"
)

// NewForgotPasswordCmd creates the forgot-password command
func NewForgotPasswordCmd(provider AppProvider) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset code",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requirePublic(cmd, app); err != nil {
				return err
			}

			email = strings.TrimSpace(email)
			if err := app.Client.SendResetOTP(cmd.Context(), email); err != nil {
				return fmt.Errorf("could not send reset code: %s", api.MessageOr(err, "please try again"))
			}
			app.Session.SetPendingPasswordReset(email)

			fmt.Fprintf(cmd.OutOrStdout(), "✓ A reset code was sent to %s\n", email)
			fmt.Fprintf(cmd.OutOrStdout(), "\nSet a new password with: allone reset-password --email %s --otp <code>\n", email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the account")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// NewResetPasswordCmd creates the reset-password command
func NewResetPasswordCmd(provider AppProvider) *cobra.Command {
	var email, otp, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password using the emailed reset code",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			return runResetPassword(cmd, app, email, otp, password)
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address the code was sent to")
	cmd.Flags().StringVar(&otp, "otp", "", "6 digit reset code (will prompt if not provided)")
	cmd.Flags().StringVar(&password, "password", "", "New password (or set ALLONE_PASSWORD, will prompt if not provided)")

	return cmd
}

func runResetPassword(cmd *cobra.Command, app *App, email, otp, password string) error {
	out := cmd.OutOrStdout()

	if err := requirePublic(cmd, app); err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = app.Session.State().PendingPasswordResetEmail
	}
	if email == "" {
		return errors.New("no pending password reset. Run 'allone forgot-password' or pass --email")
	}

	otp = strings.TrimSpace(otp)
	if otp == "" {
		var err error
		if otp, err = app.PromptCode("Reset code"); err != nil {
			return fmt.Errorf("reset code is required (use --otp): %w", err)
		}
	}
	if err := auth.ValidateOTP(otp); err != nil {
		return err
	}

	password = flagOrEnv(password, "ALLONE_PASSWORD")
	if password == "" {
		var err error
		password, err = promptSecret(out, "New password", "use --password flag or ALLONE_PASSWORD env var")
		if err != nil {
			return err
		}
	}

	err := app.Client.ResetPassword(cmd.Context(), api.ResetPasswordRequest{
		Email:    email,
		OTP:      otp,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("password reset failed: %s", api.MessageOr(err, "please try again"))
	}
	app.Session.ClearPendingPasswordReset()

	fmt.Fprintln(out, "✓ Password updated. Log in with: allone login --email "+email)
	return nil
}
