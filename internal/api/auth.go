package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// User is the identity returned by the backend
type User struct {
	ID    string `json:"_id"`
	AltID string `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// UserID returns the Mongo-style _id, falling back to id
func (u User) UserID() string {
	if u.ID != "" {
		return u.ID
	}
	return u.AltID
}

// AuthResult is a successful login or OTP verification
type AuthResult struct {
	Email  string
	Token  string
	UserID string
	Name   string
}

// authResponse accepts both the flat {email, token, _id} payload and the
// nested {token, user: {...}} payload.
type authResponse struct {
	Token  string `json:"token"`
	Email  string `json:"email"`
	ID     string `json:"_id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	User   *User  `json:"user"`
}

func (r *authResponse) result() (*AuthResult, error) {
	res := &AuthResult{
		Token:  strings.TrimSpace(r.Token),
		Email:  r.Email,
		UserID: r.ID,
		Name:   r.Name,
	}
	if res.UserID == "" {
		res.UserID = r.UserID
	}
	if r.User != nil {
		if res.Email == "" {
			res.Email = r.User.Email
		}
		if res.UserID == "" {
			res.UserID = r.User.UserID()
		}
		if res.Name == "" {
			res.Name = r.User.Name
		}
	}

	if res.Token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrMalformedResponse)
	}
	if res.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrMalformedResponse)
	}
	return res, nil
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the user and returns the session identity
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var resp authResponse
	if err := c.call(ctx, http.MethodPost, "/api/users/login", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

// RegisterRequest represents the signup request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. The backend then emails a verification OTP.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.call(ctx, http.MethodPost, "/api/users/register", req, nil)
}

// VerifyOTPRequest represents the signup OTP verification body
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP confirms a signup OTP. The response is a login payload.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*AuthResult, error) {
	var resp authResponse
	if err := c.call(ctx, http.MethodPost, "/api/users/otp-verify", VerifyOTPRequest{Email: email, OTP: otp}, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

// SendResetOTP requests a password reset OTP for email
func (c *Client) SendResetOTP(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.call(ctx, http.MethodPost, "/api/otp/sent-otp", body, nil)
}

// ResetPasswordRequest completes a forgot-password flow
type ResetPasswordRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

// ResetPassword sets a new password using the emailed OTP
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.call(ctx, http.MethodPost, "/api/otp/reset-password", req, nil)
}

// VerifyToken asks the backend to confirm the subject of the current token.
// A response without an email is ErrMalformedResponse.
func (c *Client) VerifyToken(ctx context.Context) (*User, error) {
	var resp struct {
		Wrapped *User `json:"user"`
		User
	}
	if err := c.call(ctx, http.MethodGet, c.verifyPath, nil, &resp); err != nil {
		return nil, err
	}

	user := resp.Wrapped
	if user == nil || user.Email == "" {
		// Some deployments answer with the user object at the top level
		user = &User{ID: resp.ID, AltID: resp.AltID, Email: resp.Email, Name: resp.Name}
	}
	if user.Email == "" {
		return nil, fmt.Errorf("%w: verification response has no user email", ErrMalformedResponse)
	}

	return user, nil
}
