package integration

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wormhole-demo/circle-integration/internal/attest"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{err: nil, want: ""},
		{err: fmt.Errorf("decoding: %w", wire.ErrMalformedMessage), want: ClassMalformed},
		{err: wire.ErrAmountOverflow, want: ClassMalformed},
		{err: ErrInvalidAmount, want: ClassPrecondition},
		{err: fmt.Errorf("%w: vaa/ab", ledger.ErrAlreadyConsumed), want: ClassPrecondition},
		{err: &attest.SignatureError{Position: 2, GuardianIndex: 4, Reason: "bad"}, want: ClassVerification},
		{err: attest.ErrUnknownAttester, want: ClassVerification},
		{err: fmt.Errorf("%w: %w", ErrMintFailed, errors.New("paused")), want: ClassCollaborator},
		{err: errors.New("redis: connection refused"), want: ClassCollaborator},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}
