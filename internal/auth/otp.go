package auth

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// OTPRule is the validation tag for emailed one-time passwords. Forms
// carrying an OTP use the same tag.
const OTPRule = "required,len=6,number"

// ErrInvalidOTP is returned for a code that is not exactly six digits
var ErrInvalidOTP = errors.New("please enter all 6 digits of the code")

var validate = validator.New()

// ValidateOTP checks otp against OTPRule
func ValidateOTP(otp string) error {
	if err := validate.Var(otp, OTPRule); err != nil {
		return ErrInvalidOTP
	}
	return nil
}
