package devnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/attest"
	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

const defaultGuardianCount = 5

// ChainSpec places a chain on a CCTP domain.
type ChainSpec struct {
	ChainID vaaLib.ChainID
	Domain  uint32
}

// Options tune a Network. The zero value is usable.
type Options struct {
	Guardians int
	// Ledger builds each chain's replay ledger; nil selects ledger.NewMemory.
	Ledger  func(chain vaaLib.ChainID) (ledger.Ledger, error)
	Metrics *integration.Metrics
	Logger  *zap.Logger
}

// Node is one simulated chain.
type Node struct {
	Chain  *integration.Chain
	Bus    *Bus
	Token  vaaLib.Address
	Domain uint32
}

// Network wires several chains to one guardian set and one CCTP deployment.
type Network struct {
	Guardians    *Guardians
	GuardianSets *attest.GuardianSets
	Archive      *Archive
	CCTP         *CCTP

	nodes map[vaaLib.ChainID]*Node
	order []vaaLib.ChainID

	govMu       sync.Mutex
	govSequence uint64
}

func NewNetwork(opts Options, specs ...ChainSpec) (*Network, error) {
	if opts.Guardians == 0 {
		opts.Guardians = defaultGuardianCount
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	guardians, err := NewGuardians(0, opts.Guardians)
	if err != nil {
		return nil, err
	}
	cctp, err := NewCCTP()
	if err != nil {
		return nil, err
	}
	n := &Network{
		Guardians:    guardians,
		GuardianSets: attest.NewGuardianSets(guardians.Set()),
		Archive:      NewArchive(),
		CCTP:         cctp,
		nodes:        make(map[vaaLib.ChainID]*Node),
	}

	for _, spec := range specs {
		if _, dup := n.nodes[spec.ChainID]; dup {
			return nil, fmt.Errorf("chain %d listed twice", spec.ChainID)
		}
		token := DeriveAddress(fmt.Sprintf("usdc/%d", spec.Domain))
		cctp.AddDomain(spec.Domain, token)

		emitter := DeriveAddress(fmt.Sprintf("circle-integration/%d", spec.ChainID))
		bus := NewBus(spec.ChainID, emitter, guardians, n.Archive)

		var l ledger.Ledger
		if opts.Ledger != nil {
			if l, err = opts.Ledger(spec.ChainID); err != nil {
				return nil, err
			}
		}
		chain, err := integration.NewChain(integration.Config{
			ChainID:        spec.ChainID,
			Domain:         spec.Domain,
			Emitter:        emitter,
			Finality:       1,
			Implementation: DeriveAddress(fmt.Sprintf("implementation/%d/v1", spec.ChainID)),
		}, integration.Deps{
			Guardians: n.GuardianSets,
			Attesters: cctp.Attesters(),
			Ledger:    l,
			Custody:   cctp.Custody(spec.Domain),
			Bus:       bus,
			Metrics:   opts.Metrics,
			Logger:    opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		n.nodes[spec.ChainID] = &Node{Chain: chain, Bus: bus, Token: token, Domain: spec.Domain}
		n.order = append(n.order, spec.ChainID)
	}
	return n, nil
}

func (n *Network) Node(chain vaaLib.ChainID) *Node {
	return n.nodes[chain]
}

// GovernanceVAA signs decree as a governance message for target (0 for every chain).
func (n *Network) GovernanceVAA(target vaaLib.ChainID, decree wire.Decree) ([]byte, error) {
	n.govMu.Lock()
	seq := n.govSequence
	n.govSequence++
	n.govMu.Unlock()

	payload := wire.NewGovernanceMessage(target, decree).Encode()
	v := vaaLib.CreateGovernanceVAA(time.Unix(int64(1700000000+seq), 0), uint32(seq), seq, n.Guardians.Index, payload)
	return n.Guardians.Sign(v)
}

// RegisterAll registers every chain with every other chain and maps each chain's USDC to its
// counterpart everywhere.
func (n *Network) RegisterAll(ctx context.Context) error {
	for _, id := range n.order {
		local := n.nodes[id]
		if err := n.apply(ctx, local, id, wire.RegisterAcceptedToken{Token: local.Token}); err != nil {
			return err
		}
		for _, otherID := range n.order {
			if otherID == id {
				continue
			}
			other := n.nodes[otherID]
			if err := n.apply(ctx, local, id, wire.RegisterEmitterAndDomain{
				ForeignChain:   otherID,
				ForeignEmitter: other.Chain.Emitter(),
				CCTPDomain:     other.Domain,
			}); err != nil {
				return err
			}
			if err := n.apply(ctx, local, id, wire.RegisterTargetChainToken{
				SourceToken: local.Token,
				TargetChain: otherID,
				TargetToken: other.Token,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *Network) apply(ctx context.Context, node *Node, target vaaLib.ChainID, decree wire.Decree) error {
	raw, err := n.GovernanceVAA(target, decree)
	if err != nil {
		return err
	}
	if _, err := node.Chain.ApplyGovernance(ctx, raw, integration.GovernanceOptions{}); err != nil {
		return fmt.Errorf("applying %s on chain %d: %w", decree.Action(), target, err)
	}
	return nil
}
