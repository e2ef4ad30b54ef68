package wire

import (
	"bytes"
	"fmt"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// GovernanceAction is the one-byte action discriminator of a Circle Integration governance message.
type GovernanceAction uint8

const (
	ActionUpdateWormholeFinality   GovernanceAction = 1
	ActionRegisterEmitterAndDomain GovernanceAction = 2
	ActionUpgradeContract          GovernanceAction = 3
	ActionRegisterAcceptedToken    GovernanceAction = 4
	ActionRegisterTargetChainToken GovernanceAction = 5
)

func (a GovernanceAction) String() string {
	switch a {
	case ActionUpdateWormholeFinality:
		return "UpdateWormholeFinality"
	case ActionRegisterEmitterAndDomain:
		return "RegisterEmitterAndDomain"
	case ActionUpgradeContract:
		return "UpgradeContract"
	case ActionRegisterAcceptedToken:
		return "RegisterAcceptedToken"
	case ActionRegisterTargetChainToken:
		return "RegisterTargetChainToken"
	default:
		return fmt.Sprintf("GovernanceAction(%d)", uint8(a))
	}
}

// ModuleName is the governance module identifier, stored right-aligned in a 32-byte field.
const ModuleName = "CircleIntegration"

// CircleIntegrationModule is ModuleName left-padded with zeros to 32 bytes.
var CircleIntegrationModule = vaaLib.CircleIntegrationModule

const governanceHeaderLen = 32 + 1 + 2

// GovernanceMessage is the envelope shared by every governance action.
type GovernanceMessage struct {
	Module      [32]byte
	Action      GovernanceAction
	TargetChain vaaLib.ChainID
	Payload     []byte
}

// NewGovernanceMessage wraps an encoded decree for the Circle Integration module.
func NewGovernanceMessage(targetChain vaaLib.ChainID, d Decree) *GovernanceMessage {
	return &GovernanceMessage{
		Module:      CircleIntegrationModule,
		Action:      d.Action(),
		TargetChain: targetChain,
		Payload:     d.encode(),
	}
}

func (g *GovernanceMessage) Encode() []byte {
	buf := make([]byte, 0, governanceHeaderLen+len(g.Payload))
	buf = append(buf, g.Module[:]...)
	buf = append(buf, byte(g.Action))
	buf = putUint16(buf, uint16(g.TargetChain))
	return append(buf, g.Payload...)
}

// DecodeGovernanceMessage splits the envelope. It rejects a foreign module but does not
// interpret the action; call Decree for that.
func DecodeGovernanceMessage(data []byte) (*GovernanceMessage, error) {
	r := newReader("governance message", data)
	g := &GovernanceMessage{}
	copy(g.Module[:], r.take(32))
	g.Action = GovernanceAction(r.uint8())
	g.TargetChain = vaaLib.ChainID(r.uint16())
	if r.err != nil {
		return nil, r.err
	}
	g.Payload = r.rest()

	if !bytes.Equal(g.Module[:], CircleIntegrationModule[:]) {
		return nil, fmt.Errorf("%w: %w: %x", ErrMalformedMessage, ErrInvalidGovernanceModule, g.Module)
	}
	return g, nil
}

// Decree decodes the action-specific payload into its typed variant.
func (g *GovernanceMessage) Decree() (Decree, error) {
	r := newReader(g.Action.String(), g.Payload)
	var d Decree
	switch g.Action {
	case ActionUpdateWormholeFinality:
		d = UpdateWormholeFinality{Finality: r.uint8()}
	case ActionRegisterEmitterAndDomain:
		d = RegisterEmitterAndDomain{
			ForeignChain:   vaaLib.ChainID(r.uint16()),
			ForeignEmitter: r.address(),
			CCTPDomain:     r.uint32(),
		}
	case ActionUpgradeContract:
		d = UpgradeContract{NewImplementation: r.address()}
	case ActionRegisterAcceptedToken:
		d = RegisterAcceptedToken{Token: r.address()}
	case ActionRegisterTargetChainToken:
		d = RegisterTargetChainToken{
			SourceToken: r.address(),
			TargetChain: vaaLib.ChainID(r.uint16()),
			TargetToken: r.address(),
		}
	default:
		return nil, fmt.Errorf("%w: %w: %d", ErrMalformedMessage, ErrInvalidGovernanceAction, uint8(g.Action))
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return d, nil
}

// Decree is one of the typed governance commands.
type Decree interface {
	Action() GovernanceAction
	encode() []byte
}

type UpdateWormholeFinality struct {
	Finality uint8
}

type RegisterEmitterAndDomain struct {
	ForeignChain   vaaLib.ChainID
	ForeignEmitter vaaLib.Address
	CCTPDomain     uint32
}

type UpgradeContract struct {
	NewImplementation vaaLib.Address
}

type RegisterAcceptedToken struct {
	Token vaaLib.Address
}

type RegisterTargetChainToken struct {
	SourceToken vaaLib.Address
	TargetChain vaaLib.ChainID
	TargetToken vaaLib.Address
}

func (UpdateWormholeFinality) Action() GovernanceAction   { return ActionUpdateWormholeFinality }
func (RegisterEmitterAndDomain) Action() GovernanceAction { return ActionRegisterEmitterAndDomain }
func (UpgradeContract) Action() GovernanceAction          { return ActionUpgradeContract }
func (RegisterAcceptedToken) Action() GovernanceAction    { return ActionRegisterAcceptedToken }
func (RegisterTargetChainToken) Action() GovernanceAction { return ActionRegisterTargetChainToken }

func (d UpdateWormholeFinality) encode() []byte {
	return []byte{d.Finality}
}

func (d RegisterEmitterAndDomain) encode() []byte {
	buf := make([]byte, 0, 38)
	buf = putUint16(buf, uint16(d.ForeignChain))
	buf = append(buf, d.ForeignEmitter[:]...)
	return putUint32(buf, d.CCTPDomain)
}

func (d UpgradeContract) encode() []byte {
	return append([]byte(nil), d.NewImplementation[:]...)
}

func (d RegisterAcceptedToken) encode() []byte {
	return append([]byte(nil), d.Token[:]...)
}

func (d RegisterTargetChainToken) encode() []byte {
	buf := make([]byte, 0, 66)
	buf = append(buf, d.SourceToken[:]...)
	buf = putUint16(buf, uint16(d.TargetChain))
	return append(buf, d.TargetToken[:]...)
}
