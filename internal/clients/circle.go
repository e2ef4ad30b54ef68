package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/utils"
)

const (
	IrisMainnetURL = "https://iris-api.circle.com"
	IrisSandboxURL = "https://iris-api-sandbox.circle.com"

	irisStatusComplete = "complete"
	// Iris allows 35 requests per second before blocking the caller for five minutes.
	irisRequestsPerSecond = 10
	circleMaxRetries      = 3
)

type irisMessagesResponse struct {
	Messages []irisMessage `json:"messages"`
}

type irisMessage struct {
	Message     string `json:"message"`
	EventNonce  string `json:"eventNonce"`
	Attestation string `json:"attestation"`
	Status      string `json:"status"`
}

type CircleClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls; zero selects the Iris-safe default.
	RequestsPerSecond float64
}

// CircleClient fetches CCTP attestations from Circle's Iris API.
type CircleClient struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

var _ integration.AttestationFetcher = &CircleClient{}

func NewCircleClient(logger *zap.Logger, cfg CircleClientConfig) *CircleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = IrisSandboxURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = irisRequestsPerSecond
	}
	logger = logger.With(zap.String("component", "CircleClient"))

	cbSettings := gobreaker.Settings{
		Name:        "IrisAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A pending attestation is a healthy answer.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, integration.ErrNotReady)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Iris circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &CircleClient{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:         logger,
	}
}

// FetchAttestation returns the attested message for (sourceDomain, nonce), or
// integration.ErrNotReady while Iris has not seen or finished attesting it.
func (c *CircleClient) FetchAttestation(ctx context.Context, sourceDomain uint32, nonce uint64) (*integration.CircleAttestation, error) {
	endpoint := fmt.Sprintf("/v2/messages/%d?nonce=%d", sourceDomain, nonce)

	var resp irisMessagesResponse
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, integration.ErrNotReady
	}

	msg := resp.Messages[0]
	if msg.Status != irisStatusComplete || msg.Attestation == "" || strings.EqualFold(msg.Attestation, "PENDING") {
		c.logger.Debug("Attestation pending",
			zap.Uint32("sourceDomain", sourceDomain),
			zap.Uint64("nonce", nonce),
			zap.String("status", msg.Status))
		return nil, integration.ErrNotReady
	}

	message, err := hexutil.Decode(msg.Message)
	if err != nil {
		return nil, fmt.Errorf("invalid message hex from iris: %w", err)
	}
	attestation, err := hexutil.Decode(msg.Attestation)
	if err != nil {
		return nil, fmt.Errorf("invalid attestation hex from iris: %w", err)
	}
	return &integration.CircleAttestation{Message: message, Attestation: attestation}, nil
}

func (c *CircleClient) doRequest(ctx context.Context, endpoint string, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestInternal(ctx, endpoint, response)
	})
	return err
}

func (c *CircleClient) doRequestInternal(ctx context.Context, endpoint string, response interface{}) error {
	fullURL := c.baseURL + endpoint

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(integration.ErrNotReady)
		case resp.StatusCode >= 500:
			return fmt.Errorf("iris server error: status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("iris error: status %d, body: %s", resp.StatusCode, string(body)))
		}

		if err := json.Unmarshal(body, response); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
		return nil
	}
	return utils.WithMaxRetries(ctx, operation, circleMaxRetries)
}
