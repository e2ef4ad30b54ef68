package clients

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	publicrpcv1 "github.com/certusone/wormhole/node/pkg/proto/publicrpc/v1"
	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const spySubscribeRetries = 5

// EmitterFilter restricts a spy subscription to one emitter.
type EmitterFilter struct {
	Chain   vaaLib.ChainID
	Address vaaLib.Address
}

// SpyClient handles connections to the Wormhole spy service
type SpyClient struct {
	conn   *grpc.ClientConn
	client spyv1.SpyRPCServiceClient
	logger *zap.Logger
}

// NewSpyClient creates a new client for the Wormhole spy service
func NewSpyClient(logger *zap.Logger, endpoint string) (*SpyClient, error) {
	client := &SpyClient{
		logger: logger.With(zap.String("component", "SpyClient")),
	}

	client.logger.Info("Connecting to spy service", zap.String("endpoint", endpoint))
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to spy: %w", err)
	}

	client.conn = conn
	client.client = spyv1.NewSpyRPCServiceClient(conn)
	return client, nil
}

// Close closes the connection to the spy service
func (c *SpyClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func spyRequest(filters []EmitterFilter) *spyv1.SubscribeSignedVAARequest {
	req := &spyv1.SubscribeSignedVAARequest{}
	for _, f := range filters {
		req.Filters = append(req.Filters, &spyv1.FilterEntry{
			Filter: &spyv1.FilterEntry_EmitterFilter{
				EmitterFilter: &spyv1.EmitterFilter{
					ChainId:        publicrpcv1.ChainID(f.Chain),
					EmitterAddress: hex.EncodeToString(f.Address[:]),
				},
			},
		})
	}
	return req
}

// SubscribeSignedVAA subscribes to signed VAAs from the given emitters, or from every emitter
// when filters is empty. Failed attempts are retried with exponential backoff.
func (c *SpyClient) SubscribeSignedVAA(ctx context.Context, filters []EmitterFilter) (spyv1.SpyRPCService_SubscribeSignedVAAClient, error) {
	c.logger.Debug("Subscribing to signed VAAs", zap.Int("filters", len(filters)))

	var stream spyv1.SpyRPCService_SubscribeSignedVAAClient
	attempt := 1
	operation := func() error {
		var err error
		stream, err = c.client.SubscribeSignedVAA(ctx, spyRequest(filters))
		return err
	}
	notify := func(err error, retryIn time.Duration) {
		c.logger.Warn("Subscribe attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
			zap.Duration("retryIn", retryIn))
		attempt++
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), spySubscribeRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, fmt.Errorf("failed to subscribe after %d attempts: %w", attempt, err)
	}
	return stream, nil
}
