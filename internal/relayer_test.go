package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"

	"github.com/wormhole-demo/circle-integration/internal/clients"
)

type fakeStream struct {
	grpc.ClientStream
	ctx  context.Context
	vaas chan []byte
}

func (s *fakeStream) Recv() (*spyv1.SubscribeSignedVAAResponse, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case raw, ok := <-s.vaas:
		if !ok {
			return nil, errors.New("stream closed")
		}
		return &spyv1.SubscribeSignedVAAResponse{VaaBytes: raw}, nil
	}
}

type fakeSubscriber struct {
	vaas    chan []byte
	mu      sync.Mutex
	filters []clients.EmitterFilter
	closed  bool
}

func (f *fakeSubscriber) SubscribeSignedVAA(ctx context.Context, filters []clients.EmitterFilter) (spyv1.SpyRPCService_SubscribeSignedVAAClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = filters
	return &fakeStream{ctx: ctx, vaas: f.vaas}, nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type recordingProcessor struct {
	mu   sync.Mutex
	seen []VAAData
	done chan struct{}
}

func (p *recordingProcessor) ProcessVAA(_ context.Context, vaaData VAAData) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, vaaData)
	p.done <- struct{}{}
	return "", nil
}

func TestRelayerDeliversVAAs(t *testing.T) {
	v := &vaaLib.VAA{
		Version:        vaaLib.SupportedVAAVersion,
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: vaaLib.Address{31: 0x01},
		Sequence:       3,
		Payload:        []byte{0x01},
	}
	raw, err := v.Marshal()
	require.NoError(t, err)

	sub := &fakeSubscriber{vaas: make(chan []byte, 2)}
	proc := &recordingProcessor{done: make(chan struct{}, 2)}
	filters := []clients.EmitterFilter{{Chain: vaaLib.ChainIDEthereum, Address: vaaLib.Address{31: 0x01}}}
	r := NewRelayer(zaptest.NewLogger(t), sub, filters, proc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(ctx) }()

	sub.vaas <- []byte{0xff}
	sub.vaas <- raw

	select {
	case <-proc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("VAA was not processed")
	}
	cancel()
	require.NoError(t, <-errCh)
	r.Close()

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.seen, 1)
	assert.Equal(t, uint64(3), proc.seen[0].Sequence)
	assert.Equal(t, uint16(2), proc.seen[0].ChainID)
	assert.Equal(t, v.SigningDigest(), proc.seen[0].Digest)
	assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000001", proc.seen[0].EmitterHex)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, filters, sub.filters)
	assert.True(t, sub.closed)
}
