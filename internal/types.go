package internal

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/wire"
)

type VAAData struct {
	VAA        *vaaLib.VAA // The parsed VAA
	RawBytes   []byte      // Raw VAA bytes
	ChainID    uint16      // Source chain ID
	EmitterHex string      // Hex-encoded emitter address
	Sequence   uint64      // VAA sequence number
	Digest     common.Hash // Signing digest, stable across signature sets
}

// NewVAAData parses raw VAA bytes as received from the spy.
func NewVAAData(vaaBytes []byte) (VAAData, error) {
	v, err := wire.ParseVAAPermissive(vaaBytes)
	if err != nil {
		return VAAData{}, err
	}
	return VAAData{
		VAA:        v,
		RawBytes:   vaaBytes,
		ChainID:    uint16(v.EmitterChain),
		EmitterHex: fmt.Sprintf("%064x", v.EmitterAddress[:]),
		Sequence:   v.Sequence,
		Digest:     v.SigningDigest(),
	}, nil
}
