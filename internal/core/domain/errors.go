package domain

import "errors"

var (
	ErrEmptyIdentity      = errors.New("identity is required")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrSendBufferFull     = errors.New("send buffer full")
	ErrUnknownSignalKind  = errors.New("unknown signal kind")
	ErrMissingTarget      = errors.New("signal target is required")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyMessage       = errors.New("message must have text or image")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidMedia       = errors.New("invalid media data URL")
	ErrMediaTooLarge      = errors.New("media exceeds size limit")
)
