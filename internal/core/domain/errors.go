package domain

import "errors"

var (
	ErrDuplicateSession = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrDecode           = errors.New("malformed signaling envelope")
	ErrSignalingState   = errors.New("signaling message out of order")
	ErrTransportSend    = errors.New("transport send failed")
	ErrSetup            = errors.New("benchmark setup failed")
)
