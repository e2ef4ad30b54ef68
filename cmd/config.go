package cmd

import (
	"fmt"
	"strconv"
	"strings"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/clients"
	"github.com/wormhole-demo/circle-integration/internal/registry"
)

// EVMChainConfig holds chain-specific configuration
type EVMChainConfig struct {
	ChainID       vaaLib.ChainID
	CCTPDomain    uint32
	DefaultRPCURL string
	DisplayName   string
}

// Supported EVM destinations (testnets)
var EVMChainConfigs = map[string]EVMChainConfig{
	"sepolia": {
		ChainID:       vaaLib.ChainIDSepolia,
		CCTPDomain:    0,
		DefaultRPCURL: "https://ethereum-sepolia-rpc.publicnode.com",
		DisplayName:   "Ethereum Sepolia",
	},
	"fuji": {
		ChainID:       vaaLib.ChainIDAvalanche,
		CCTPDomain:    1,
		DefaultRPCURL: "https://api.avax-test.network/ext/bc/C/rpc",
		DisplayName:   "Avalanche Fuji",
	},
	"arbitrum": {
		ChainID:       vaaLib.ChainIDArbitrumSepolia,
		CCTPDomain:    3,
		DefaultRPCURL: "https://sepolia-rollup.arbitrum.io/rpc",
		DisplayName:   "Arbitrum Sepolia",
	},
	"base": {
		ChainID:       vaaLib.ChainIDBaseSepolia,
		CCTPDomain:    6,
		DefaultRPCURL: "https://sepolia.base.org",
		DisplayName:   "Base Sepolia",
	},
}

// parseRegisteredEmitter parses "chain:emitter:domain", e.g. "1:0x3b26...:5".
// Emitter addresses shorter than 32 bytes are left-padded.
func parseRegisteredEmitter(value string) (registry.Emitter, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return registry.Emitter{}, fmt.Errorf("registered emitter %q: want chain:emitter:domain", value)
	}
	chain, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return registry.Emitter{}, fmt.Errorf("registered emitter %q: invalid chain: %w", value, err)
	}
	address, err := vaaLib.StringToAddress(parts[1])
	if err != nil {
		return registry.Emitter{}, fmt.Errorf("registered emitter %q: invalid emitter: %w", value, err)
	}
	domain, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return registry.Emitter{}, fmt.Errorf("registered emitter %q: invalid domain: %w", value, err)
	}
	return registry.Emitter{Chain: vaaLib.ChainID(chain), Address: address, Domain: uint32(domain)}, nil
}

// buildRegistry loads the relayer's view of which foreign contracts it relays for.
func buildRegistry(localChain vaaLib.ChainID, localDomain uint32, values []string) (*registry.Registry, error) {
	reg := registry.New(localChain, localDomain)
	for _, v := range values {
		e, err := parseRegisteredEmitter(v)
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterEmitterAndDomain(e.Chain, e.Address, e.Domain); err != nil {
			return nil, fmt.Errorf("registered emitter %q: %w", v, err)
		}
	}
	return reg, nil
}

func emitterFilters(reg *registry.Registry) []clients.EmitterFilter {
	emitters := reg.Emitters()
	filters := make([]clients.EmitterFilter, 0, len(emitters))
	for _, e := range emitters {
		filters = append(filters, clients.EmitterFilter{Chain: e.Chain, Address: e.Address})
	}
	return filters
}
