package models

import "time"

// RefreshToken is the record stored in the expiring store for each issued
// refresh token. It never leaves the session manager except inside an
// IssueResult.
type RefreshToken struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueResult is returned to the presentation layer on login.
type IssueResult struct {
	TokenID     string    `json:"token_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RevokeOutcome reports the result of revoking a single token during a bulk
// invalidation. Failures are collected, never dropped.
type RevokeOutcome struct {
	TokenID string `json:"token_id"`
	Err     error  `json:"-"`
}

// Revoked reports whether this token was revoked successfully.
func (o RevokeOutcome) Revoked() bool {
	return o.Err == nil
}
