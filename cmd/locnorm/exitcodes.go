package main

import (
	perr "locnorm/internal/platform/errors"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success, per record failures are logged
	ExitError       = 1 // Runtime or infrastructure failure
	ExitConfigError = 2 // Missing or malformed configuration
	ExitInvalidArgs = 3 // Invalid flags or an unknown --name
	ExitLeaseHeld   = 4 // Another run holds the entity lease
)

func exitCodeOf(err error) int {
	switch perr.CodeOf(err) {
	case perr.ErrorCodeInvalidArgument, perr.ErrorCodeValidation, perr.ErrorCodeNotFound:
		return ExitInvalidArgs
	case perr.ErrorCodeConfig:
		return ExitConfigError
	case perr.ErrorCodeLeaseHeld:
		return ExitLeaseHeld
	default:
		return ExitError
	}
}
