package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage is returned for any structural decode failure: short buffers,
	// length fields that disagree with the remaining bytes, or unknown discriminators.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrAmountOverflow is returned when a 256-bit amount does not fit the requested native width.
	ErrAmountOverflow = errors.New("amount overflows native integer width")

	ErrInvalidGovernanceModule = errors.New("invalid governance module")
	ErrInvalidGovernanceAction = errors.New("invalid governance action")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
