package domain

import "errors"

var (
	ErrInvalidRequest     = errors.New("missing phone number or agent")
	ErrDeviceUnavailable  = errors.New("device not registered")
	ErrCallInProgress     = errors.New("call already in progress")
	ErrUnknownLead        = errors.New("lead not present in queue")
	ErrNoActiveConnection = errors.New("no active connection")
)
