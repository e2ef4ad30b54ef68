package devnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/integration"
)

type vaaID struct {
	chain    vaaLib.ChainID
	emitter  vaaLib.Address
	sequence uint64
}

// Archive stores every signed VAA, playing the guardian REST API.
type Archive struct {
	mu      sync.Mutex
	signed  map[vaaID][]byte
	pending map[vaaID]int
	// PendingPolls is how many fetches of a fresh VAA report not ready.
	PendingPolls int
}

var _ integration.VAAFetcher = &Archive{}

func NewArchive() *Archive {
	return &Archive{signed: make(map[vaaID][]byte), pending: make(map[vaaID]int)}
}

func (a *Archive) put(id vaaID, raw []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signed[id] = raw
	a.pending[id] = a.PendingPolls
}

func (a *Archive) FetchSignedVAA(_ context.Context, chain vaaLib.ChainID, emitter vaaLib.Address, sequence uint64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := vaaID{chain, emitter, sequence}
	raw, ok := a.signed[id]
	if !ok {
		return nil, integration.ErrNotReady
	}
	if a.pending[id] > 0 {
		a.pending[id]--
		return nil, integration.ErrNotReady
	}
	return raw, nil
}

// Bus is one chain's core bridge. Published messages are signed immediately and archived.
type Bus struct {
	chain     vaaLib.ChainID
	emitter   vaaLib.Address
	guardians *Guardians
	archive   *Archive
	now       func() time.Time

	mu       sync.Mutex
	sequence uint64
	// Fail makes Publish return an error.
	Fail bool
}

var _ integration.MessageBus = &Bus{}

func NewBus(chain vaaLib.ChainID, emitter vaaLib.Address, guardians *Guardians, archive *Archive) *Bus {
	return &Bus{chain: chain, emitter: emitter, guardians: guardians, archive: archive, now: time.Now}
}

func (b *Bus) Publish(_ context.Context, nonce uint32, payload []byte, consistencyLevel uint8) (vaaLib.Address, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail {
		return vaaLib.Address{}, 0, fmt.Errorf("core bridge on chain %d is paused", b.chain)
	}
	seq := b.sequence
	v := &vaaLib.VAA{
		Version:          vaaLib.SupportedVAAVersion,
		Timestamp:        b.now().Truncate(time.Second),
		Nonce:            nonce,
		Sequence:         seq,
		ConsistencyLevel: consistencyLevel,
		EmitterChain:     b.chain,
		EmitterAddress:   b.emitter,
		Payload:          append([]byte(nil), payload...),
	}
	raw, err := b.guardians.Sign(v)
	if err != nil {
		return vaaLib.Address{}, 0, err
	}
	b.sequence++
	b.archive.put(vaaID{b.chain, b.emitter, seq}, raw)
	return b.emitter, seq, nil
}
