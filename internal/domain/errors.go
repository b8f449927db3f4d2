package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid job input")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDispatchRejected    = errors.New("dispatch rejected by provider")
	ErrJobTerminal         = errors.New("job already in a terminal state")
	ErrUnsupportedPlan     = errors.New("unsupported plan")
	ErrSweeperRunning      = errors.New("sweeper already running")
)
