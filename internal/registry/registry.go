// Package registry holds a chain's governance-populated allow-lists: trusted foreign emitters
// with their CCTP domains, tokens accepted for outbound transfer, and per-chain token mappings.
// Every entry is written once.
package registry

import (
	"errors"
	"fmt"
	"sync"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var (
	ErrAlreadyRegistered      = errors.New("already registered")
	ErrInvalidForeignChain    = errors.New("invalid foreign chain")
	ErrInvalidForeignEmitter  = errors.New("invalid foreign emitter")
	ErrInvalidCctpDomain      = errors.New("invalid cctp domain")
	ErrInvalidToken           = errors.New("invalid token")
	ErrSourceTokenNotAccepted = errors.New("source token not accepted")
)

// Emitter is a trusted Circle Integration contract on a foreign chain.
type Emitter struct {
	Chain   vaaLib.ChainID
	Address vaaLib.Address
	Domain  uint32
}

// TargetToken maps a local token to its counterpart on a foreign chain.
type TargetToken struct {
	SourceToken vaaLib.Address
	Chain       vaaLib.ChainID
	TargetToken vaaLib.Address
}

type targetKey struct {
	token vaaLib.Address
	chain vaaLib.ChainID
}

type Registry struct {
	localChain  vaaLib.ChainID
	localDomain uint32

	mu       sync.RWMutex
	emitters map[vaaLib.ChainID]Emitter
	domains  map[uint32]vaaLib.ChainID
	accepted map[vaaLib.Address]struct{}
	targets  map[targetKey]vaaLib.Address
}

func New(localChain vaaLib.ChainID, localDomain uint32) *Registry {
	return &Registry{
		localChain:  localChain,
		localDomain: localDomain,
		emitters:    make(map[vaaLib.ChainID]Emitter),
		domains:     make(map[uint32]vaaLib.ChainID),
		accepted:    make(map[vaaLib.Address]struct{}),
		targets:     make(map[targetKey]vaaLib.Address),
	}
}

func (r *Registry) LocalChain() vaaLib.ChainID {
	return r.localChain
}

func (r *Registry) LocalDomain() uint32 {
	return r.localDomain
}

// RegisterEmitterAndDomain binds a foreign chain to its emitter and CCTP domain. Neither the
// chain nor the domain may be bound again.
func (r *Registry) RegisterEmitterAndDomain(chain vaaLib.ChainID, emitter vaaLib.Address, domain uint32) error {
	if chain == vaaLib.ChainIDUnset || chain == r.localChain {
		return fmt.Errorf("%w: %d", ErrInvalidForeignChain, chain)
	}
	if emitter == (vaaLib.Address{}) {
		return ErrInvalidForeignEmitter
	}
	if domain == r.localDomain {
		return fmt.Errorf("%w: %d is the local domain", ErrInvalidCctpDomain, domain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.emitters[chain]; ok {
		return fmt.Errorf("%w: chain %d is bound to %s", ErrAlreadyRegistered, chain, existing.Address)
	}
	if other, ok := r.domains[domain]; ok {
		return fmt.Errorf("%w: domain %d is bound to chain %d", ErrAlreadyRegistered, domain, other)
	}
	r.emitters[chain] = Emitter{Chain: chain, Address: emitter, Domain: domain}
	r.domains[domain] = chain
	return nil
}

func (r *Registry) IsRegistered(chain vaaLib.ChainID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.emitters[chain]
	return ok
}

func (r *Registry) LookupEmitter(chain vaaLib.ChainID) (Emitter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.emitters[chain]
	return e, ok
}

func (r *Registry) ChainForDomain(domain uint32) (vaaLib.ChainID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.domains[domain]
	return c, ok
}

// Emitters returns a snapshot of every registered emitter.
func (r *Registry) Emitters() []Emitter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Emitter, 0, len(r.emitters))
	for _, e := range r.emitters {
		out = append(out, e)
	}
	return out
}

func (r *Registry) RegisterAcceptedToken(token vaaLib.Address) error {
	if token == (vaaLib.Address{}) {
		return ErrInvalidToken
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accepted[token]; ok {
		return fmt.Errorf("%w: token %s", ErrAlreadyRegistered, token)
	}
	r.accepted[token] = struct{}{}
	return nil
}

func (r *Registry) IsAcceptedToken(token vaaLib.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.accepted[token]
	return ok
}

func (r *Registry) RegisterTargetChainToken(sourceToken vaaLib.Address, chain vaaLib.ChainID, targetToken vaaLib.Address) error {
	if chain == vaaLib.ChainIDUnset || chain == r.localChain {
		return fmt.Errorf("%w: %d", ErrInvalidForeignChain, chain)
	}
	if sourceToken == (vaaLib.Address{}) || targetToken == (vaaLib.Address{}) {
		return ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accepted[sourceToken]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceTokenNotAccepted, sourceToken)
	}
	k := targetKey{token: sourceToken, chain: chain}
	if existing, ok := r.targets[k]; ok {
		return fmt.Errorf("%w: %s on chain %d maps to %s", ErrAlreadyRegistered, sourceToken, chain, existing)
	}
	r.targets[k] = targetToken
	return nil
}

func (r *Registry) TargetToken(sourceToken vaaLib.Address, chain vaaLib.ChainID) (vaaLib.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[targetKey{token: sourceToken, chain: chain}]
	return t, ok
}
