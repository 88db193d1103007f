package services

import "errors"

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrInvalidLeaveStatus  = errors.New("leaveStatus must be one of available, partial, ooo")
	ErrInvalidStatus       = errors.New("status must be one of at-risk, unassigned, covered")
	ErrInvalidPriority     = errors.New("priority must be one of P0, P1, P2")
	ErrInvalidInput        = errors.New("invalid input")
	ErrSourceNotConfigured = errors.New("chat source is not configured")
	ErrSourceUnavailable   = errors.New("chat source unavailable")
	ErrGmailNotConfigured  = errors.New("gmail is not configured: set GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET and GMAIL_REFRESH_TOKEN")
	ErrGmailUnavailable    = errors.New("gmail api error")
	ErrOracleNotConfigured = errors.New("no LLM provider configured")
	ErrPingNotConfigured   = errors.New("slack ping user is not configured")
	ErrPingFailed          = errors.New("slack ping failed")
)
