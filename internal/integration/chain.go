// Package integration is the Circle Integration state machine for one chain: outbound
// transfers, inbound redemptions and governance, serialized per chain.
package integration

import (
	"errors"
	"fmt"
	"sync"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/registry"
)

// Config describes the local deployment.
type Config struct {
	ChainID vaaLib.ChainID
	Domain  uint32
	// Emitter is this chain's Circle Integration contract, the address deposits are
	// published from and the only caller allowed to receive inbound CCTP messages.
	Emitter        vaaLib.Address
	Finality       uint8
	Implementation vaaLib.Address

	// Governance source; zero values select the Wormhole defaults.
	GovernanceChain   vaaLib.ChainID
	GovernanceEmitter vaaLib.Address
}

// Deps are the chain's collaborators. Registry and Ledger default to fresh in-memory stores.
type Deps struct {
	Guardians GuardianVerifier
	Attesters AttestationVerifier
	Ledger    ledger.Ledger
	Registry  *registry.Registry
	Custody   TokenCustody
	Bus       MessageBus
	Metrics   *Metrics
	Logger    *zap.Logger
}

// Chain is one shard of protocol state. Every mutating operation holds mu for its full
// duration, so operations on one chain never interleave.
type Chain struct {
	cfg       Config
	logger    *zap.Logger
	guardians GuardianVerifier
	attesters AttestationVerifier
	ledger    ledger.Ledger
	registry  *registry.Registry
	custody   TokenCustody
	bus       MessageBus
	metrics   *Metrics
	label     string

	mu             sync.Mutex
	finality       uint8
	implementation vaaLib.Address
}

func NewChain(cfg Config, deps Deps) (*Chain, error) {
	if cfg.ChainID == vaaLib.ChainIDUnset {
		return nil, errors.New("chain id is required")
	}
	if cfg.Emitter == (vaaLib.Address{}) {
		return nil, errors.New("emitter address is required")
	}
	if deps.Guardians == nil || deps.Attesters == nil {
		return nil, errors.New("guardian and attester verifiers are required")
	}
	if deps.Custody == nil || deps.Bus == nil {
		return nil, errors.New("token custody and message bus are required")
	}
	if cfg.Finality == 0 {
		cfg.Finality = 1
	}
	if cfg.GovernanceChain == vaaLib.ChainIDUnset {
		cfg.GovernanceChain = vaaLib.GovernanceChain
	}
	if cfg.GovernanceEmitter == (vaaLib.Address{}) {
		cfg.GovernanceEmitter = vaaLib.GovernanceEmitter
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.NewMemory()
	}
	if deps.Registry == nil {
		deps.Registry = registry.New(cfg.ChainID, cfg.Domain)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chain{
		cfg: cfg,
		logger: logger.With(
			zap.String("component", "CircleIntegration"),
			zap.Stringer("chain", cfg.ChainID),
			zap.Uint32("domain", cfg.Domain),
		),
		guardians:      deps.Guardians,
		attesters:      deps.Attesters,
		ledger:         deps.Ledger,
		registry:       deps.Registry,
		custody:        deps.Custody,
		bus:            deps.Bus,
		metrics:        deps.Metrics,
		label:          fmt.Sprintf("%d", uint16(cfg.ChainID)),
		finality:       cfg.Finality,
		implementation: cfg.Implementation,
	}, nil
}

func (c *Chain) ID() vaaLib.ChainID {
	return c.cfg.ChainID
}

func (c *Chain) Domain() uint32 {
	return c.cfg.Domain
}

func (c *Chain) Emitter() vaaLib.Address {
	return c.cfg.Emitter
}

// Registry exposes read access to the chain's allow-lists. Mutations go through governance.
func (c *Chain) Registry() *registry.Registry {
	return c.registry
}

func (c *Chain) Ledger() ledger.Ledger {
	return c.ledger
}

func (c *Chain) Finality() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finality
}

func (c *Chain) Implementation() vaaLib.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.implementation
}

// reject logs and counts a failed operation. Verification failures are logged louder than
// ordinary rejections.
func (c *Chain) reject(operation string, err error, fields ...zap.Field) error {
	class := Classify(err)
	c.metrics.rejection(c.label, operation, class)
	fields = append(fields, zap.String("operation", operation), zap.String("class", string(class)), zap.Error(err))
	switch class {
	case ClassVerification:
		c.logger.Warn("Rejected", fields...)
	case ClassCollaborator:
		c.logger.Error("Rejected", fields...)
	default:
		c.logger.Info("Rejected", fields...)
	}
	return err
}
