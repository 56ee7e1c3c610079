package orch

import "errors"

var (
	ErrMediaAcquisition = errors.New("media acquisition failed")
	ErrNoSession        = errors.New("not in a call")
	ErrAlreadyInCall    = errors.New("already in a call")
	ErrCancelled        = errors.New("call cancelled")
	ErrStopped          = errors.New("orchestrator stopped")
)
