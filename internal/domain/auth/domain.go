package auth

import (
	"time"
)

type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string // sha256 of the raw token, base64url; the raw value is never stored
	IssuedAt  time.Time
	ExpiresAt time.Time
	IsRevoked bool
	RevokedAt *time.Time
}

// Live reports whether the token may still be redeemed at now.
func (t *RefreshToken) Live(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

type MessageKey string

const (
	MsgInvalidCredentials     MessageKey = "InvalidCredentials"
	MsgUsernameExists         MessageKey = "UsernameExists"
	MsgEmailExists            MessageKey = "EmailExists"
	MsgInvalidRole            MessageKey = "InvalidRole"
	MsgRegistrationSuccessful MessageKey = "RegistrationSuccessful"
	MsgLoginSuccessful        MessageKey = "LoginSuccessful"
	MsgRefreshSuccessful      MessageKey = "RefreshSuccessful"
	MsgInternalError          MessageKey = "InternalError"
	MsgInvalidRequest         MessageKey = "InvalidRequest"
)

type EventKind string

const (
	EventUserRegistered      EventKind = "user_registered"
	EventLoginSucceeded      EventKind = "login_succeeded"
	EventTokenRefreshed      EventKind = "token_refreshed"
	EventRefreshTokenReused  EventKind = "refresh_token_reused"
	EventRefreshTokenRevoked EventKind = "refresh_token_revoked"
)

type Event struct {
	Kind     EventKind `json:"kind"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}
