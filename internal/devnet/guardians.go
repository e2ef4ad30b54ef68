// Package devnet is an in-process stand-in for the guardian network, the Wormhole core
// bridge and CCTP. Tests and the simulate command run whole transfers against it.
package devnet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/attest"
)

// Guardians is a guardian set whose private keys we hold.
type Guardians struct {
	Index uint32
	Keys  []*ecdsa.PrivateKey
}

func NewGuardians(index uint32, n int) (*Guardians, error) {
	g := &Guardians{Index: index, Keys: make([]*ecdsa.PrivateKey, n)}
	for i := range g.Keys {
		k, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generating guardian key: %w", err)
		}
		g.Keys[i] = k
	}
	return g, nil
}

func (g *Guardians) Set() attest.GuardianSet {
	addrs := make([]common.Address, len(g.Keys))
	for i, k := range g.Keys {
		addrs[i] = crypto.PubkeyToAddress(k.PublicKey)
	}
	return attest.GuardianSet{Index: g.Index, Keys: addrs}
}

// Sign signs v with every guardian and returns the wire encoding.
func (g *Guardians) Sign(v *vaaLib.VAA) ([]byte, error) {
	return g.SignWith(v, len(g.Keys))
}

// SignWith signs v with the first n guardians.
func (g *Guardians) SignWith(v *vaaLib.VAA, n int) ([]byte, error) {
	v.GuardianSetIndex = g.Index
	v.Signatures = nil
	for i := 0; i < n && i < len(g.Keys); i++ {
		v.AddSignature(g.Keys[i], uint8(i))
	}
	return v.Marshal()
}

// DeriveAddress returns a stable EVM-style 32-byte address for label.
func DeriveAddress(label string) vaaLib.Address {
	var a vaaLib.Address
	copy(a[12:], crypto.Keccak256([]byte(label))[12:])
	return a
}
