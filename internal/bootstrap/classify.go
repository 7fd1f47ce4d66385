package bootstrap

import "github.com/allone-dev/allone/internal/api"

// Verdict is how a failed verification is treated
type Verdict int

const (
	// VerdictInvalid means the token is rejected and the session is logged out
	VerdictInvalid Verdict = iota
	// VerdictTransient means the check could not be made; it is retried and,
	// if it keeps failing, the stored session is kept
	VerdictTransient
)

// Classifier maps a verification error to a Verdict
type Classifier func(err error) Verdict

// FailClosed treats every failure as an invalid token
func FailClosed(error) Verdict {
	return VerdictInvalid
}

// RetainOnTransient treats network failures and 5xx responses as transient
// and everything else (401, malformed responses, 4xx) as invalid.
func RetainOnTransient(err error) Verdict {
	if api.IsTransient(err) {
		return VerdictTransient
	}
	return VerdictInvalid
}
