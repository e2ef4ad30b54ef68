package integration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/attest"
	"github.com/wormhole-demo/circle-integration/internal/devnet"
	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/registry"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

func TestRegistrationIsImmutable(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	chain := h.net.Node(2).Chain
	before, ok := chain.Registry().LookupEmitter(1)
	require.True(t, ok)

	_, err := chain.RegisterEmitterAndDomain(h.ctx, h.governance(2, wire.RegisterEmitterAndDomain{
		ForeignChain: 1, ForeignEmitter: devnet.DeriveAddress("hijacker"), CCTPDomain: 9,
	}))
	require.ErrorIs(t, err, registry.ErrAlreadyRegistered)

	after, _ := chain.Registry().LookupEmitter(1)
	assert.Equal(t, before, after)
	_, bound := chain.Registry().ChainForDomain(9)
	assert.False(t, bound)
}

func TestGovernanceReplay(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	chain := h.net.Node(1).Chain
	raw := h.governance(0, wire.UpdateWormholeFinality{Finality: 15})

	_, err := chain.UpdateWormholeFinality(h.ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(15), chain.Finality())

	_, err = chain.UpdateWormholeFinality(h.ctx, raw)
	require.ErrorIs(t, err, ledger.ErrAlreadyConsumed)
}

func TestGovernanceFinalityUsedByTransfers(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	chain := h.net.Node(1).Chain
	_, err := chain.UpdateWormholeFinality(h.ctx, h.governance(1, wire.UpdateWormholeFinality{Finality: 200}))
	require.NoError(t, err)

	receipt := h.transfer(1, 2, 1)
	raw, err := h.net.Archive.FetchSignedVAA(h.ctx, 1, receipt.Emitter, receipt.Sequence)
	require.NoError(t, err)
	v, err := wire.ParseVAA(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), v.ConsistencyLevel)
}

func TestUpgradeContract(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	chain := h.net.Node(2).Chain
	next := devnet.DeriveAddress("implementation/2/v2")
	raw := h.governance(2, wire.UpgradeContract{NewImplementation: next})

	_, err := chain.UpgradeContract(h.ctx, raw, devnet.DeriveAddress("implementation/2/evil"))
	require.ErrorIs(t, err, integration.ErrImplementationMismatch)
	assert.NotEqual(t, next, chain.Implementation())

	// the failed attempt must not consume the VAA
	receipt, err := chain.UpgradeContract(h.ctx, raw, next)
	require.NoError(t, err)
	assert.Equal(t, wire.ActionUpgradeContract, receipt.Action)
	assert.Equal(t, next, chain.Implementation())
}

func TestGovernanceRejections(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	chain := h.net.Node(2).Chain
	finality := wire.UpdateWormholeFinality{Finality: 3}

	foreignEmitter := func() []byte {
		payload := wire.NewGovernanceMessage(2, finality).Encode()
		v := vaaLib.CreateGovernanceVAA(time.Unix(1, 0), 1, 999, 0, payload)
		v.EmitterAddress = devnet.DeriveAddress("not governance")
		raw, err := h.net.Guardians.Sign(v)
		require.NoError(t, err)
		return raw
	}
	foreignModule := func() []byte {
		msg := wire.NewGovernanceMessage(2, finality)
		copy(msg.Module[:], vaaLib.CoreModule)
		v := vaaLib.CreateGovernanceVAA(time.Unix(1, 0), 1, 998, 0, msg.Encode())
		raw, err := h.net.Guardians.Sign(v)
		require.NoError(t, err)
		return raw
	}
	underSigned := func() []byte {
		v := vaaLib.CreateGovernanceVAA(time.Unix(1, 0), 1, 997, 0, wire.NewGovernanceMessage(2, finality).Encode())
		raw, err := h.net.Guardians.SignWith(v, 3)
		require.NoError(t, err)
		return raw
	}

	tests := []struct {
		label string
		apply func() (*integration.GovernanceReceipt, error)
		want  error
		class integration.ErrorClass
	}{
		{
			label: "foreign emitter",
			apply: func() (*integration.GovernanceReceipt, error) { return chain.UpdateWormholeFinality(h.ctx, foreignEmitter()) },
			want:  integration.ErrInvalidGovernanceEmitter,
			class: integration.ClassVerification,
		},
		{
			label: "foreign module",
			apply: func() (*integration.GovernanceReceipt, error) { return chain.UpdateWormholeFinality(h.ctx, foreignModule()) },
			want:  wire.ErrInvalidGovernanceModule,
			class: integration.ClassMalformed,
		},
		{
			label: "insufficient signatures",
			apply: func() (*integration.GovernanceReceipt, error) { return chain.UpdateWormholeFinality(h.ctx, underSigned()) },
			want:  attest.ErrInsufficientSignatures,
			class: integration.ClassVerification,
		},
		{
			label: "another chain",
			apply: func() (*integration.GovernanceReceipt, error) {
				return chain.UpdateWormholeFinality(h.ctx, h.governance(1, finality))
			},
			want:  integration.ErrGovernanceForAnotherChain,
			class: integration.ClassPrecondition,
		},
		{
			label: "upgrade for every chain",
			apply: func() (*integration.GovernanceReceipt, error) {
				impl := devnet.DeriveAddress("implementation/any")
				return chain.UpgradeContract(h.ctx, h.governance(0, wire.UpgradeContract{NewImplementation: impl}), impl)
			},
			want:  integration.ErrGovernanceForAnotherChain,
			class: integration.ClassPrecondition,
		},
		{
			label: "wrong entrypoint",
			apply: func() (*integration.GovernanceReceipt, error) {
				return chain.RegisterAcceptedToken(h.ctx, h.governance(2, finality))
			},
			want:  wire.ErrInvalidGovernanceAction,
			class: integration.ClassMalformed,
		},
		{
			label: "zero finality",
			apply: func() (*integration.GovernanceReceipt, error) {
				return chain.UpdateWormholeFinality(h.ctx, h.governance(2, wire.UpdateWormholeFinality{Finality: 0}))
			},
			want:  integration.ErrInvalidFinality,
			class: integration.ClassPrecondition,
		},
		{
			label: "target token before accepted token",
			apply: func() (*integration.GovernanceReceipt, error) {
				return chain.RegisterTargetChainToken(h.ctx, h.governance(2, wire.RegisterTargetChainToken{
					SourceToken: devnet.DeriveAddress("dai"), TargetChain: 1, TargetToken: devnet.DeriveAddress("dai/1"),
				}))
			},
			want:  registry.ErrSourceTokenNotAccepted,
			class: integration.ClassPrecondition,
		},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			_, err := tc.apply()
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.class, integration.Classify(err))
			assert.Equal(t, uint8(1), chain.Finality())
		})
	}
}

func TestApplyGovernanceDispatchesEveryAction(t *testing.T) {
	h := newHarness(t, devnet.Options{}, devnet.ChainSpec{ChainID: 4, Domain: 3})
	chain := h.net.Node(4).Chain
	dai := devnet.DeriveAddress("dai")

	decrees := []wire.Decree{
		wire.RegisterEmitterAndDomain{ForeignChain: 5, ForeignEmitter: devnet.DeriveAddress("emitter/5"), CCTPDomain: 4},
		wire.RegisterAcceptedToken{Token: dai},
		wire.RegisterTargetChainToken{SourceToken: dai, TargetChain: 5, TargetToken: devnet.DeriveAddress("dai/5")},
		wire.UpdateWormholeFinality{Finality: 9},
	}
	for _, d := range decrees {
		receipt, err := chain.ApplyGovernance(h.ctx, h.governance(0, d), integration.GovernanceOptions{})
		require.NoError(t, err)
		assert.Equal(t, d, receipt.Decree)
	}

	assert.True(t, chain.Registry().IsRegistered(5))
	assert.True(t, chain.Registry().IsAcceptedToken(dai))
	target, ok := chain.Registry().TargetToken(dai, 5)
	require.True(t, ok)
	assert.Equal(t, devnet.DeriveAddress("dai/5"), target)
	assert.Equal(t, uint8(9), chain.Finality())
}
