package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LoginForm is posted by the login page
type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	From     string `form:"from"`
}

// SignupForm is posted by the signup page
type SignupForm struct {
	Name       string `form:"name" validate:"required,max=100"`
	Email      string `form:"email" validate:"required,email"`
	Password   string `form:"password" validate:"required,min=6"`
	AgreeTerms bool   `form:"agree_terms" validate:"required"`
}

// OTPForm is posted by the signup verification page
type OTPForm struct {
	OTP string `form:"otp" validate:"required,len=6,number"`
}

// ForgotPasswordForm is posted by the forgot password page
type ForgotPasswordForm struct {
	Email string `form:"email" validate:"required,email"`
}

// ResetPasswordForm is posted by the reset password page
type ResetPasswordForm struct {
	OTP             string `form:"otp" validate:"required,len=6,number"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// CategoryForm creates a note, date or document category
type CategoryForm struct {
	Name        string `form:"name" validate:"required,max=100"`
	Description string `form:"description" validate:"max=500"`
	Color       string `form:"color" validate:"omitempty,alphanum,max=20"`
	Type        string `form:"type" validate:"omitempty,alphanum,max=30"`
}

// NoteForm adds a note to a category
type NoteForm struct {
	Title   string `form:"title" validate:"required,max=200"`
	Content string `form:"content" validate:"required"`
}

// DateForm adds an important date to a category
type DateForm struct {
	Title       string `form:"title" validate:"required,max=200"`
	Date        string `form:"date" validate:"required,datetime=2006-01-02"`
	Description string `form:"description" validate:"max=500"`
	Reminder    bool   `form:"reminder"`
}

// DocumentForm carries the fields next to an uploaded document
type DocumentForm struct {
	Title string `form:"title" validate:"required,max=200"`
}

// AlbumForm carries the fields next to an uploaded album cover
type AlbumForm struct {
	Title string `form:"title" validate:"required,max=100"`
}

// newValidator creates the form validator
func newValidator() *validator.Validate {
	return validator.New()
}

// validationMessage turns a validation error into text for the page
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Please check the form and try again."
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, " ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		if fe.Field() == "AgreeTerms" {
			return "Please agree to the terms and conditions."
		}
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return "Please enter a valid email address."
	case "len", "number":
		if fe.Field() == "OTP" {
			return "Please enter all 6 digits."
		}
		return fmt.Sprintf("%s is invalid.", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", field, fe.Param())
	case "eqfield":
		return "Passwords do not match."
	case "datetime":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD).", field)
	default:
		return fmt.Sprintf("%s is invalid.", field)
	}
}

func fieldLabel(name string) string {
	switch name {
	case "OTP":
		return "OTP"
	case "ConfirmPassword":
		return "Password confirmation"
	default:
		return name
	}
}
