package models

import "time"

// Feedback types shown on the login page.
const (
	FeedbackTypeLocked = "locked"
)

// LoginFeedback is the session-scoped payload surfaced to the login page
// after a blocked login attempt.
type LoginFeedback struct {
	Type          string `json:"type"`
	AccountLocked bool   `json:"account_locked"`
}

// UnlockCode is the cache payload for an emailed one-time unlock code.
type UnlockCode struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

// PasswordResetState is the session-scoped state of an in-flight
// password reset. It is never persisted to the account.
type PasswordResetState struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Verified bool   `json:"verified"`
}

// LogoutReasonSuperseded is flashed to the login page when a session was
// terminated because a newer login took its place.
const LogoutReasonSuperseded = "automatically logged out because a newer login occurred on another device"
