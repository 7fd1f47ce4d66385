package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/allone-dev/allone/internal/api"
	"github.com/allone-dev/allone/internal/auth"
	"github.com/allone-dev/allone/internal/guard"
	"github.com/allone-dev/allone/internal/session"
)

// render adds the session fields the layout needs and renders a page
func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	state := s.session.State()
	defaults := gin.H{
		"Title":         "AllOne",
		"Authenticated": state.IsAuthenticated,
		"Email":         state.Email,
		"Error":         "",
		"Notice":        "",
		"Refresh":       0,
	}
	if data == nil {
		data = gin.H{}
	}
	for key, value := range defaults {
		if _, ok := data[key]; !ok {
			data[key] = value
		}
	}
	c.HTML(status, name, data)
}

// failureStatus maps a backend error to the status of the page reporting it
func failureStatus(err error) int {
	if code := api.StatusCode(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}

func identityOf(res *api.AuthResult) session.Identity {
	return session.Identity{Email: res.Email, Token: res.Token, UserID: res.UserID}
}

func (s *Server) loginPage(c *gin.Context) {
	notice := ""
	if c.Query("reset") == "1" {
		notice = "Password updated. Please log in with your new password."
	}
	s.render(c, http.StatusOK, "login", gin.H{
		"Title":     "Log in",
		"From":      c.Query("from"),
		"FormEmail": "",
		"Notice":    notice,
	})
}

func (s *Server) login(c *gin.Context) {
	var form LoginForm
	fail := func(status int, msg string) {
		s.render(c, status, "login", gin.H{
			"Title":     "Log in",
			"From":      form.From,
			"FormEmail": form.Email,
			"Error":     msg,
		})
	}

	if err := c.ShouldBind(&form); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid login form")
		fail(http.StatusBadRequest, "Invalid request")
		return
	}
	form.Email = strings.TrimSpace(form.Email)
	if err := s.validator.Struct(&form); err != nil {
		fail(http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.backend.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", form.Email).Msg("Login failed")
		fail(failureStatus(err), api.MessageOr(err, "Login failed. Please check your credentials."))
		return
	}
	if err := s.session.Login(identityOf(res)); err != nil {
		s.logger.Error().Err(err).Msg("Login response unusable")
		fail(http.StatusBadGateway, "Login failed. Please check your credentials.")
		return
	}

	s.logger.Info().Str("email", res.Email).Msg("User logged in")
	c.Redirect(http.StatusSeeOther, guard.ReturnPath(form.From))
}

func (s *Server) signupPage(c *gin.Context) {
	s.render(c, http.StatusOK, "signup", gin.H{
		"Title":     "Sign up",
		"FormName":  "",
		"FormEmail": "",
	})
}

func (s *Server) signup(c *gin.Context) {
	var form SignupForm
	fail := func(status int, msg string) {
		s.render(c, status, "signup", gin.H{
			"Title":     "Sign up",
			"FormName":  form.Name,
			"FormEmail": form.Email,
			"Error":     msg,
		})
	}

	if err := c.ShouldBind(&form); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid signup form")
		fail(http.StatusBadRequest, "Invalid request")
		return
	}
	form.Email = strings.TrimSpace(form.Email)
	form.Name = strings.TrimSpace(form.Name)
	if err := s.validator.Struct(&form); err != nil {
		fail(http.StatusBadRequest, validationMessage(err))
		return
	}

	err := s.backend.Register(c.Request.Context(), api.RegisterRequest{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("email", form.Email).Msg("Registration failed")
		fail(failureStatus(err), api.MessageOr(err, "Registration failed. Please try again."))
		return
	}

	s.session.SetPendingVerification(form.Email)
	s.logger.Info().Str("email", form.Email).Msg("User registered - awaiting verification")
	c.Redirect(http.StatusSeeOther, "/verify-otp")
}

func (s *Server) verifyOTPPage(c *gin.Context) {
	pending := stateFromContext(c).PendingVerificationEmail
	if pending == "" {
		c.Redirect(http.StatusSeeOther, "/signup")
		return
	}
	s.render(c, http.StatusOK, "verify-otp", gin.H{
		"Title":        "Verify email",
		"PendingEmail": pending,
	})
}

func (s *Server) verifyOTP(c *gin.Context) {
	pending := stateFromContext(c).PendingVerificationEmail
	if pending == "" {
		c.Redirect(http.StatusSeeOther, "/signup")
		return
	}

	fail := func(status int, msg string) {
		s.render(c, status, "verify-otp", gin.H{
			"Title":        "Verify email",
			"PendingEmail": pending,
			"Error":        msg,
		})
	}

	var form OTPForm
	if err := c.ShouldBind(&form); err != nil {
		fail(http.StatusBadRequest, "Invalid request")
		return
	}
	form.OTP = strings.TrimSpace(form.OTP)
	if err := s.validator.Struct(&form); err != nil {
		fail(http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.backend.VerifyOTP(c.Request.Context(), pending, form.OTP)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", pending).Msg("OTP verification failed")
		fail(failureStatus(err), api.MessageOr(err, "Invalid OTP. Please try again."))
		return
	}
	if err := s.session.Login(identityOf(res)); err != nil {
		s.logger.Error().Err(err).Msg("OTP verification response unusable")
		fail(http.StatusBadGateway, "Invalid OTP. Please try again.")
		return
	}

	s.logger.Info().Str("email", res.Email).Msg("Email verified")
	c.Redirect(http.StatusSeeOther, guard.HomePath)
}

func (s *Server) cancelVerification(c *gin.Context) {
	s.session.ClearPendingVerification()
	c.Redirect(http.StatusSeeOther, "/signup")
}

func (s *Server) forgotPasswordPage(c *gin.Context) {
	s.render(c, http.StatusOK, "forgot-password", gin.H{
		"Title":     "Forgot password",
		"FormEmail": "",
	})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var form ForgotPasswordForm
	fail := func(status int, msg string) {
		s.render(c, status, "forgot-password", gin.H{
			"Title":     "Forgot password",
			"FormEmail": form.Email,
			"Error":     msg,
		})
	}

	if err := c.ShouldBind(&form); err != nil {
		fail(http.StatusBadRequest, "Invalid request")
		return
	}
	form.Email = strings.TrimSpace(form.Email)
	if err := s.validator.Struct(&form); err != nil {
		fail(http.StatusBadRequest, validationMessage(err))
		return
	}

	if err := s.backend.SendResetOTP(c.Request.Context(), form.Email); err != nil {
		s.logger.Warn().Err(err).Str("email", form.Email).Msg("Sending reset OTP failed")
		fail(failureStatus(err), api.MessageOr(err, "Failed to send OTP. Please try again."))
		return
	}

	s.session.SetPendingPasswordReset(form.Email)
	c.Redirect(http.StatusSeeOther, "/reset-password")
}

func (s *Server) resetPasswordPage(c *gin.Context) {
	pending := stateFromContext(c).PendingPasswordResetEmail
	if pending == "" {
		c.Redirect(http.StatusSeeOther, "/forgot-password")
		return
	}
	s.render(c, http.StatusOK, "reset-password", gin.H{
		"Title":        "Reset password",
		"PendingEmail": pending,
	})
}

func (s *Server) resetPassword(c *gin.Context) {
	pending := stateFromContext(c).PendingPasswordResetEmail
	if pending == "" {
		c.Redirect(http.StatusSeeOther, "/forgot-password")
		return
	}

	fail := func(status int, msg string) {
		s.render(c, status, "reset-password", gin.H{
			"Title":        "Reset password",
			"PendingEmail": pending,
			"Error":        msg,
		})
	}

	var form ResetPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		fail(http.StatusBadRequest, "Invalid request")
		return
	}
	form.OTP = strings.TrimSpace(form.OTP)
	if err := s.validator.Struct(&form); err != nil {
		fail(http.StatusBadRequest, validationMessage(err))
		return
	}

	err := s.backend.ResetPassword(c.Request.Context(), api.ResetPasswordRequest{
		Email:    pending,
		OTP:      form.OTP,
		Password: form.Password,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("email", pending).Msg("Password reset failed")
		fail(failureStatus(err), api.MessageOr(err, "Failed to reset password. Please try again."))
		return
	}

	s.session.ClearPendingPasswordReset()
	s.logger.Info().Str("email", pending).Msg("Password reset")
	c.Redirect(http.StatusSeeOther, "/login?reset=1")
}

func (s *Server) cancelPasswordReset(c *gin.Context) {
	s.session.ClearPendingPasswordReset()
	c.Redirect(http.StatusSeeOther, "/login")
}

func (s *Server) logoutPage(c *gin.Context) {
	s.render(c, http.StatusOK, "logout", gin.H{"Title": "Log out"})
}

func (s *Server) logout(c *gin.Context) {
	email := stateFromContext(c).Email
	s.session.Logout()
	s.logger.Info().Str("email", email).Msg("User logged out")
	c.Redirect(http.StatusSeeOther, guard.LoginPath)
}

func (s *Server) profile(c *gin.Context) {
	state := stateFromContext(c)

	tokenStatus := "active"
	if info, err := auth.Inspect(state.Token); err == nil {
		tokenStatus = info.Describe(s.now())
	}

	s.render(c, http.StatusOK, "profile", gin.H{
		"Title":       "Profile",
		"Email":       state.Email,
		"UserID":      state.UserID,
		"TokenStatus": tokenStatus,
	})
}
