package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/clients"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

const resubscribeDelay = 5 * time.Second

// VAASubscriber is implemented by clients.SpyClient.
type VAASubscriber interface {
	SubscribeSignedVAA(ctx context.Context, filters []clients.EmitterFilter) (spyv1.SpyRPCService_SubscribeSignedVAAClient, error)
	Close()
}

type Relayer struct {
	spyClient    VAASubscriber
	filters      []clients.EmitterFilter
	vaaProcessor VAAProcessor
	logger       *zap.Logger
}

// NewRelayer creates a new relayer instance. An empty filter list subscribes to every emitter.
func NewRelayer(logger *zap.Logger, spyClient VAASubscriber, filters []clients.EmitterFilter, processor VAAProcessor) *Relayer {
	return &Relayer{
		logger:       logger.With(zap.String("component", "Relayer")),
		spyClient:    spyClient,
		filters:      filters,
		vaaProcessor: processor,
	}
}

// Close cleans up resources used by the relayer
func (r *Relayer) Close() {
	if r.spyClient != nil {
		r.spyClient.Close()
	}
}

// Start listens for VAAs until ctx is done, processing each in its own goroutine.
func (r *Relayer) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	stream, err := r.spyClient.SubscribeSignedVAA(ctx, r.filters)
	if err != nil {
		return fmt.Errorf("subscribe to VAA stream: %w", err)
	}

	r.logger.Info("Listening for VAAs", zap.Int("emitterFilters", len(r.filters)))

	processingCtx, cancelProcessing := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelProcessing()

	shutdown := func() {
		cancelProcessing()
		r.logger.Info("Waiting for all VAA processing to complete")
		wg.Wait()
	}

	for {
		if ctx.Err() != nil {
			r.logger.Info("Shutting down relayer")
			shutdown()
			r.logger.Info("Shutdown complete")
			return nil
		}

		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Warn("Stream error, resubscribing", zap.Error(err), zap.Duration("delay", resubscribeDelay))
			select {
			case <-ctx.Done():
				continue
			case <-time.After(resubscribeDelay):
			}
			stream, err = r.spyClient.SubscribeSignedVAA(ctx, r.filters)
			if err != nil {
				shutdown()
				return fmt.Errorf("subscribe to VAA stream after retry: %w", err)
			}
			continue
		}

		wg.Add(1)
		go func(vaaBytes []byte) {
			defer wg.Done()
			r.processVAA(processingCtx, vaaBytes)
		}(resp.VaaBytes)
	}
}

func (r *Relayer) processVAA(ctx context.Context, vaaBytes []byte) {
	if ctx.Err() != nil {
		r.logger.Debug("Processing cancelled for VAA")
		return
	}

	vaaData, err := NewVAAData(vaaBytes)
	if err != nil {
		r.logger.Error("Failed to parse VAA", zap.Error(err))
		return
	}

	if r.logger.Core().Enabled(zap.DebugLevel) {
		wire.LogVAAFull(r.logger, vaaData.VAA, vaaBytes)
	}

	if _, err := r.vaaProcessor.ProcessVAA(ctx, vaaData); err != nil {
		r.logger.Error("Error processing VAA",
			zap.Uint16("chain", vaaData.ChainID),
			zap.Uint64("sequence", vaaData.Sequence),
			zap.Error(err))
	}
}
