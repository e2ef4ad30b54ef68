package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

func addr(b byte) (a vaaLib.Address) {
	for i := range a {
		a[i] = b
	}
	return a
}

func TestCircleIntegrationModuleIsRightAligned(t *testing.T) {
	assert.Equal(t, make([]byte, 32-len(ModuleName)), CircleIntegrationModule[:32-len(ModuleName)])
	assert.Equal(t, []byte(ModuleName), CircleIntegrationModule[32-len(ModuleName):])
}

func TestGovernanceRoundTrip(t *testing.T) {
	tests := []struct {
		label  string
		decree Decree
		size   int
	}{
		{label: "finality", decree: UpdateWormholeFinality{Finality: 200}, size: 1},
		{label: "register emitter", decree: RegisterEmitterAndDomain{ForeignChain: 6, ForeignEmitter: addr(0xaa), CCTPDomain: 1}, size: 38},
		{label: "upgrade", decree: UpgradeContract{NewImplementation: addr(0x11)}, size: 32},
		{label: "accepted token", decree: RegisterAcceptedToken{Token: addr(0x22)}, size: 32},
		{label: "target token", decree: RegisterTargetChainToken{SourceToken: addr(0x22), TargetChain: 2, TargetToken: addr(0x33)}, size: 66},
		{label: "max domain", decree: RegisterEmitterAndDomain{ForeignChain: 0xffff, ForeignEmitter: addr(0xff), CCTPDomain: 0xffffffff}, size: 38},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			msg := NewGovernanceMessage(2, tc.decree)
			encoded := msg.Encode()
			require.Len(t, encoded, governanceHeaderLen+tc.size)

			decoded, err := DecodeGovernanceMessage(encoded)
			require.NoError(t, err)
			assert.Equal(t, msg, decoded)

			d, err := decoded.Decree()
			require.NoError(t, err)
			assert.Equal(t, tc.decree, d)
		})
	}
}

func TestGovernanceMatchesSDKSerialization(t *testing.T) {
	register, err := vaaLib.BodyCircleIntegrationRegisterEmitterAndDomain{
		TargetChainID:         2,
		ForeignEmitterChainId: 6,
		ForeignEmitterAddress: addr(0xaa),
		CircleDomain:          1,
	}.Serialize()
	require.NoError(t, err)
	assert.Equal(t, register, NewGovernanceMessage(2, RegisterEmitterAndDomain{ForeignChain: 6, ForeignEmitter: addr(0xaa), CCTPDomain: 1}).Encode())

	finality, err := vaaLib.BodyCircleIntegrationUpdateWormholeFinality{TargetChainID: 0, Finality: 15}.Serialize()
	require.NoError(t, err)
	assert.Equal(t, finality, NewGovernanceMessage(0, UpdateWormholeFinality{Finality: 15}).Encode())

	upgrade, err := vaaLib.BodyCircleIntegrationUpgradeContractImplementation{TargetChainID: 2, NewImplementationAddress: addr(0x11)}.Serialize()
	require.NoError(t, err)
	assert.Equal(t, upgrade, NewGovernanceMessage(2, UpgradeContract{NewImplementation: addr(0x11)}).Encode())
}

func TestGovernanceRegisterEmitterLayout(t *testing.T) {
	msg := NewGovernanceMessage(0, RegisterEmitterAndDomain{ForeignChain: 0x0102, ForeignEmitter: addr(0xaa), CCTPDomain: 0x03040506})
	encoded := msg.Encode()

	assert.Equal(t, byte(ActionRegisterEmitterAndDomain), encoded[32])
	assert.Equal(t, []byte{0, 0}, encoded[33:35])
	assert.Equal(t, []byte{0x01, 0x02}, encoded[35:37])
	assert.Equal(t, []byte{0x03, 0x04, 0x05, 0x06}, encoded[69:73])
}

func TestDecodeGovernanceRejectsForeignModule(t *testing.T) {
	msg := NewGovernanceMessage(0, UpdateWormholeFinality{Finality: 1})
	copy(msg.Module[:], vaaLib.CoreModule)
	_, err := DecodeGovernanceMessage(msg.Encode())
	assert.ErrorIs(t, err, ErrInvalidGovernanceModule)
	assert.ErrorIs(t, err, ErrMalformedMessage)

	msg = NewGovernanceMessage(0, UpdateWormholeFinality{Finality: 1})
	msg.Module[0] = 0xff
	_, err = DecodeGovernanceMessage(msg.Encode())
	assert.ErrorIs(t, err, ErrInvalidGovernanceModule)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeGovernanceRejectsUnknownAction(t *testing.T) {
	msg := &GovernanceMessage{Module: CircleIntegrationModule, Action: 9, Payload: []byte{1}}
	decoded, err := DecodeGovernanceMessage(msg.Encode())
	require.NoError(t, err)

	_, err = decoded.Decree()
	assert.ErrorIs(t, err, ErrInvalidGovernanceAction)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeGovernanceRejectsBadPayloadLength(t *testing.T) {
	short := &GovernanceMessage{Module: CircleIntegrationModule, Action: ActionRegisterEmitterAndDomain, Payload: make([]byte, 37)}
	_, err := short.Decree()
	assert.ErrorIs(t, err, ErrMalformedMessage)

	long := &GovernanceMessage{Module: CircleIntegrationModule, Action: ActionUpdateWormholeFinality, Payload: []byte{1, 2}}
	_, err = long.Decree()
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeGovernanceTruncatedHeader(t *testing.T) {
	_, err := DecodeGovernanceMessage(CircleIntegrationModule[:])
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
