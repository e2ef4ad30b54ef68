package integration_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-demo/circle-integration/internal/attest"
	"github.com/wormhole-demo/circle-integration/internal/devnet"
	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

var (
	sender    = devnet.DeriveAddress("sender")
	recipient = devnet.DeriveAddress("recipient")
	payload   = []byte("All your base are belong to us.")
	fastPoll  = integration.AwaitConfig{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Timeout: 5 * time.Second}
)

type harness struct {
	t   *testing.T
	ctx context.Context
	net *devnet.Network
}

func newHarness(t *testing.T, opts devnet.Options, specs ...devnet.ChainSpec) *harness {
	t.Helper()
	if len(specs) == 0 {
		specs = []devnet.ChainSpec{{ChainID: 1, Domain: 0}, {ChainID: 2, Domain: 1}}
	}
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	net, err := devnet.NewNetwork(opts, specs...)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, net.RegisterAll(ctx))
	return &harness{t: t, ctx: ctx, net: net}
}

func (h *harness) transfer(from, to vaaLib.ChainID, amount uint64) *integration.TransferReceipt {
	h.t.Helper()
	node := h.net.Node(from)
	h.net.CCTP.Fund(node.Domain, sender, uint256.NewInt(amount))
	receipt, err := node.Chain.TransferTokensWithPayload(h.ctx, sender, integration.TransferParams{
		Token:         node.Token,
		Amount:        uint256.NewInt(amount),
		TargetChain:   to,
		MintRecipient: recipient,
		Payload:       payload,
	})
	require.NoError(h.t, err)
	return receipt
}

func (h *harness) await(receipt *integration.TransferReceipt) integration.RedeemParams {
	h.t.Helper()
	params, err := integration.AwaitRedeemParams(h.ctx, h.net.Archive, h.net.CCTP, receipt.Published(), fastPoll, zaptest.NewLogger(h.t))
	require.NoError(h.t, err)
	return *params
}

func (h *harness) governance(target vaaLib.ChainID, decree wire.Decree) []byte {
	h.t.Helper()
	raw, err := h.net.GovernanceVAA(target, decree)
	require.NoError(h.t, err)
	return raw
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	h.net.Archive.PendingPolls = 2
	h.net.CCTP.PendingPolls = 3

	receipt := h.transfer(1, 2, 69)
	assert.Equal(t, uint64(0), h.net.CCTP.Balance(0, sender).Uint64())
	assert.Equal(t, uint32(0), receipt.Deposit.SourceDomain)
	assert.Equal(t, uint32(1), receipt.Deposit.DestinationDomain)
	assert.Equal(t, sender, receipt.Deposit.BurnSource)

	params := h.await(receipt)

	destination := h.net.Node(2)
	redeemed, err := destination.Chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.NoError(t, err)
	assert.Equal(t, uint64(69), redeemed.Amount.Uint64())
	assert.Equal(t, payload, redeemed.Payload)
	assert.Equal(t, destination.Token, redeemed.Token)
	assert.Equal(t, vaaLib.ChainID(1), redeemed.SourceChain)
	assert.Equal(t, uint64(69), h.net.CCTP.Balance(1, recipient).Uint64())

	consumed, err := destination.Chain.Ledger().IsConsumed(h.ctx, ledger.VAAKey(redeemed.Digest))
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestRedeemReplay(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	params := h.await(h.transfer(1, 2, 69))
	chain := h.net.Node(2).Chain

	_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.NoError(t, err)

	_, err = chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.ErrorIs(t, err, ledger.ErrAlreadyConsumed)
	assert.Equal(t, integration.ClassPrecondition, integration.Classify(err))
	assert.Equal(t, uint64(69), h.net.CCTP.Balance(1, recipient).Uint64())
}

func TestRedeemMessagePairing(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	a := h.await(h.transfer(1, 2, 69))
	b := h.await(h.transfer(1, 2, 70))
	chain := h.net.Node(2).Chain

	crossed := []integration.RedeemParams{
		{EncodedWormholeMessage: a.EncodedWormholeMessage, CircleBridgeMessage: b.CircleBridgeMessage, CircleAttestation: b.CircleAttestation},
		{EncodedWormholeMessage: b.EncodedWormholeMessage, CircleBridgeMessage: a.CircleBridgeMessage, CircleAttestation: a.CircleAttestation},
	}
	for _, params := range crossed {
		_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, params)
		require.ErrorIs(t, err, integration.ErrInvalidMessagePair)
	}
	assert.True(t, h.net.CCTP.Balance(1, recipient).IsZero())

	_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, a)
	require.NoError(t, err)
	_, err = chain.RedeemTokensWithPayload(h.ctx, recipient, a)
	require.ErrorIs(t, err, ledger.ErrAlreadyConsumed)
	_, err = chain.RedeemTokensWithPayload(h.ctx, recipient, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(139), h.net.CCTP.Balance(1, recipient).Uint64())
}

func TestRedeemOnWrongChain(t *testing.T) {
	h := newHarness(t, devnet.Options{},
		devnet.ChainSpec{ChainID: 1, Domain: 0},
		devnet.ChainSpec{ChainID: 2, Domain: 1},
		devnet.ChainSpec{ChainID: 6, Domain: 2},
	)
	params := h.await(h.transfer(1, 2, 69))

	_, err := h.net.Node(6).Chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.ErrorIs(t, err, integration.ErrInvalidMessagePair)
}

func TestRedeemRejections(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	params := h.await(h.transfer(1, 2, 69))
	chain := h.net.Node(2).Chain

	t.Run("caller must be mint recipient", func(t *testing.T) {
		_, err := chain.RedeemTokensWithPayload(h.ctx, sender, params)
		require.ErrorIs(t, err, integration.ErrCallerMustBeMintRecipient)
	})
	t.Run("bad attestation", func(t *testing.T) {
		bad := params
		bad.CircleAttestation = append([]byte(nil), params.CircleAttestation...)
		bad.CircleAttestation[10] ^= 0xff
		_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, bad)
		require.Error(t, err)
		assert.Equal(t, integration.ClassVerification, integration.Classify(err))
	})
	t.Run("truncated message", func(t *testing.T) {
		bad := params
		bad.CircleBridgeMessage = params.CircleBridgeMessage[:100]
		_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, bad)
		require.ErrorIs(t, err, wire.ErrMalformedMessage)
		assert.Equal(t, integration.ClassMalformed, integration.Classify(err))
	})
	t.Run("insufficient guardian signatures", func(t *testing.T) {
		v, err := wire.ParseVAA(params.EncodedWormholeMessage)
		require.NoError(t, err)
		v.Signatures = v.Signatures[:2]
		raw, err := v.Marshal()
		require.NoError(t, err)

		bad := params
		bad.EncodedWormholeMessage = raw
		_, err = chain.RedeemTokensWithPayload(h.ctx, recipient, bad)
		require.ErrorIs(t, err, attest.ErrInsufficientSignatures)
	})
	t.Run("unknown emitter", func(t *testing.T) {
		v, err := wire.ParseVAA(params.EncodedWormholeMessage)
		require.NoError(t, err)
		v.EmitterAddress = devnet.DeriveAddress("impostor")
		raw, err := h.net.Guardians.Sign(v)
		require.NoError(t, err)

		bad := params
		bad.EncodedWormholeMessage = raw
		_, err = chain.RedeemTokensWithPayload(h.ctx, recipient, bad)
		require.ErrorIs(t, err, integration.ErrUnknownEmitter)
	})

	// nothing above may have consumed anything
	_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.NoError(t, err)
}

func TestRedeemMintFailureLeavesNoTrace(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	params := h.await(h.transfer(1, 2, 69))
	chain := h.net.Node(2).Chain

	h.net.CCTP.FailMints = true
	_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.ErrorIs(t, err, integration.ErrMintFailed)
	assert.Equal(t, integration.ClassCollaborator, integration.Classify(err))

	v, err := wire.ParseVAA(params.EncodedWormholeMessage)
	require.NoError(t, err)
	consumed, err := chain.Ledger().IsConsumed(h.ctx, ledger.VAAKey(v.SigningDigest()))
	require.NoError(t, err)
	assert.False(t, consumed)

	h.net.CCTP.FailMints = false
	_, err = chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.NoError(t, err)
}

func TestRedeemConcurrent(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	params := h.await(h.transfer(1, 2, 69))
	chain := h.net.Node(2).Chain

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := chain.RedeemTokensWithPayload(h.ctx, recipient, params); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, uint64(69), h.net.CCTP.Balance(1, recipient).Uint64())
}

func TestTransferPreconditions(t *testing.T) {
	h := newHarness(t, devnet.Options{},
		devnet.ChainSpec{ChainID: 1, Domain: 0},
		devnet.ChainSpec{ChainID: 2, Domain: 1},
	)
	node := h.net.Node(1)
	h.net.CCTP.Fund(0, sender, uint256.NewInt(1000))

	// chain 6 has an emitter registered on chain 1 but no token mapping
	_, err := node.Chain.RegisterEmitterAndDomain(h.ctx, h.governance(1, wire.RegisterEmitterAndDomain{
		ForeignChain: 6, ForeignEmitter: devnet.DeriveAddress("circle-integration/6"), CCTPDomain: 7,
	}))
	require.NoError(t, err)

	valid := integration.TransferParams{
		Token:         node.Token,
		Amount:        uint256.NewInt(1),
		TargetChain:   2,
		MintRecipient: recipient,
		Payload:       payload,
	}
	tests := []struct {
		label  string
		modify func(p *integration.TransferParams)
		want   error
	}{
		{label: "zero amount", modify: func(p *integration.TransferParams) { p.Amount = uint256.NewInt(0) }, want: integration.ErrInvalidAmount},
		{label: "nil amount", modify: func(p *integration.TransferParams) { p.Amount = nil }, want: integration.ErrInvalidAmount},
		{label: "zero recipient", modify: func(p *integration.TransferParams) { p.MintRecipient = vaaLib.Address{} }, want: integration.ErrInvalidMintRecipient},
		{label: "unaccepted token", modify: func(p *integration.TransferParams) { p.Token = devnet.DeriveAddress("dai") }, want: integration.ErrTokenNotAccepted},
		{label: "unregistered chain", modify: func(p *integration.TransferParams) { p.TargetChain = 5 }, want: integration.ErrTargetContractNotRegistered},
		{label: "unmapped token", modify: func(p *integration.TransferParams) { p.TargetChain = 6 }, want: integration.ErrTargetTokenNotRegistered},
		{label: "oversized payload", modify: func(p *integration.TransferParams) { p.Payload = make([]byte, 0x10000) }, want: integration.ErrPayloadTooLarge},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			params := valid
			tc.modify(&params)
			_, err := node.Chain.TransferTokensWithPayload(h.ctx, sender, params)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, integration.ClassPrecondition, integration.Classify(err))
			assert.Equal(t, uint64(1000), h.net.CCTP.Balance(0, sender).Uint64())
		})
	}
}

func TestTransferCollaboratorFailures(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	node := h.net.Node(1)
	params := integration.TransferParams{
		Token:         node.Token,
		Amount:        uint256.NewInt(5),
		TargetChain:   2,
		MintRecipient: recipient,
	}

	_, err := node.Chain.TransferTokensWithPayload(h.ctx, sender, params)
	require.ErrorIs(t, err, integration.ErrBurnFailed)
	require.ErrorIs(t, err, devnet.ErrInsufficientBalance)
	assert.Equal(t, integration.ClassCollaborator, integration.Classify(err))

	h.net.CCTP.Fund(0, sender, uint256.NewInt(5))
	node.Bus.Fail = true
	_, err = node.Chain.TransferTokensWithPayload(h.ctx, sender, params)
	require.ErrorIs(t, err, integration.ErrPublishFailed)
}

func TestTransfersRunInParallelAcrossChains(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	for _, n := range []vaaLib.ChainID{1, 2} {
		h.net.CCTP.Fund(h.net.Node(n).Domain, sender, uint256.NewInt(100))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		for from, to := range map[vaaLib.ChainID]vaaLib.ChainID{1: 2, 2: 1} {
			wg.Add(1)
			go func(from, to vaaLib.ChainID) {
				defer wg.Done()
				node := h.net.Node(from)
				_, err := node.Chain.TransferTokensWithPayload(h.ctx, sender, integration.TransferParams{
					Token: node.Token, Amount: uint256.NewInt(10), TargetChain: to, MintRecipient: recipient,
				})
				errs <- err
			}(from, to)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.True(t, h.net.CCTP.Balance(0, sender).IsZero())
	assert.True(t, h.net.CCTP.Balance(1, sender).IsZero())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, devnet.Options{Metrics: integration.NewMetrics(reg)})
	params := h.await(h.transfer(1, 2, 69))
	chain := h.net.Node(2).Chain

	_, err := chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.NoError(t, err)
	_, err = chain.RedeemTokensWithPayload(h.ctx, recipient, params)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "circle_integration_transfers_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(reg, "circle_integration_rejections_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAwaitRedeemParamsTimeout(t *testing.T) {
	h := newHarness(t, devnet.Options{})
	receipt := h.transfer(1, 2, 69)
	published := receipt.Published()
	published.Sequence += 100

	cfg := fastPoll
	cfg.Timeout = 30 * time.Millisecond
	_, err := integration.AwaitRedeemParams(h.ctx, h.net.Archive, h.net.CCTP, published, cfg, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
