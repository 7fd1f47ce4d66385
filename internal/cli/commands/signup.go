package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/auth"
	"github.com/allone-dev/allone/internal/session"
)

// NewSignupCmd creates the signup command
func NewSignupCmd(provider AppProvider) *cobra.Command {
	var name, email, password, otp string
	var agree bool

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and verify it with the emailed code",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			return runSignup(cmd, app, signupInput{
				Name:     name,
				Email:    email,
				Password: password,
				OTP:      otp,
				Agree:    agree,
			})
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address (or set ALLONE_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ALLONE_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&otp, "otp", "", "6 digit verification code (will prompt if not provided)")
	cmd.Flags().BoolVar(&agree, "agree-terms", false, "Agree to the terms and conditions")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

type signupInput struct {
	Name     string
	Email    string
	Password string
	OTP      string
	Agree    bool
}

func runSignup(cmd *cobra.Command, app *App, in signupInput) error {
	out := cmd.OutOrStdout()

	in.Email = strings.TrimSpace(flagOrEnv(in.Email, "ALLONE_EMAIL"))
	in.Password = flagOrEnv(in.Password, "ALLONE_PASSWORD")

	if !in.Agree {
		return errors.New("please agree to the terms and conditions (--agree-terms)")
	}
	if in.Email == "" {
		return fmt.Errorf("email is required (use --email flag or ALLONE_EMAIL env var)")
	}

	if err := requirePublic(cmd, app); err != nil {
		return err
	}

	if in.Password == "" {
		var err error
		in.Password, err = promptSecret(out, "Password", "use --password flag or ALLONE_PASSWORD env var")
		if err != nil {
			return err
		}
	}

	err := app.Client.Register(cmd.Context(), api.RegisterRequest{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %s", api.MessageOr(err, "please try again"))
	}

	app.Session.SetPendingVerification(in.Email)
	fmt.Fprintf(out, "✓ Account created. A verification code was sent to %s\n", in.Email)

	if in.OTP == "" {
		in.OTP, err = app.PromptCode("Verification code")
		if err != nil {
			fmt.Fprintf(out, "\nFinish later with: allone verify-otp --email %s --otp <code>\n", in.Email)
			return nil
		}
	}

	return verifyOTP(cmd, app, in.Email, in.OTP)
}

// NewVerifyOTPCmd creates the verify-otp command
func NewVerifyOTPCmd(provider AppProvider) *cobra.Command {
	var email, otp string

	cmd := &cobra.Command{
		Use:   "verify-otp",
		Short: "Verify a new account with the emailed code",
		RunE: withApp(provider, func(cmd *cobra.Command, app *App, args []string) error {
			if err := requirePublic(cmd, app); err != nil {
				return err
			}

			email = strings.TrimSpace(email)
			if email == "" {
				email = app.Session.State().PendingVerificationEmail
			}
			if email == "" {
				return errors.New("no pending verification. Run 'allone signup' or pass --email")
			}

			if otp == "" {
				var err error
				if otp, err = app.PromptCode("Verification code"); err != nil {
					return fmt.Errorf("verification code is required (use --otp): %w", err)
				}
			}
			return verifyOTP(cmd, app, email, otp)
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address the code was sent to")
	cmd.Flags().StringVar(&otp, "otp", "", "6 digit verification code (will prompt if not provided)")

	return cmd
}

func verifyOTP(cmd *cobra.Command, app *App, email, otp string) error {
	otp = strings.TrimSpace(otp)
	if err := auth.ValidateOTP(otp); err != nil {
		return err
	}

	res, err := app.Client.VerifyOTP(cmd.Context(), email, otp)
	if err != nil {
		return fmt.Errorf("verification failed: %s", api.MessageOr(err, "invalid or expired code"))
	}

	if err := app.Session.Login(session.Identity{Email: res.Email, Token: res.Token, UserID: res.UserID}); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	app.Session.ClearPendingVerification()

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Email verified. You are now logged in.")
	return nil
}
