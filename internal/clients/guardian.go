package clients

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/utils"
)

const guardianMaxRetries = 3

type signedVAAResponse struct {
	VAABytes string `json:"vaaBytes"`
}

// GuardianClient reads signed VAAs from a guardian's public REST endpoint.
type GuardianClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.VAAFetcher = &GuardianClient{}

func NewGuardianClient(logger *zap.Logger, baseURL string) *GuardianClient {
	return &GuardianClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(zap.String("component", "GuardianClient")),
	}
}

// FetchSignedVAA returns integration.ErrNotReady until the guardians have reached quorum.
func (c *GuardianClient) FetchSignedVAA(ctx context.Context, chain vaaLib.ChainID, emitter vaaLib.Address, sequence uint64) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%d", c.baseURL, uint16(chain), hex.EncodeToString(emitter[:]), sequence)

	var raw []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
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
			return fmt.Errorf("guardian server error: status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("guardian error: status %d, body: %s", resp.StatusCode, string(body)))
		}

		var parsed signedVAAResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
		raw, err = base64.StdEncoding.DecodeString(parsed.VAABytes)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("invalid vaaBytes: %w", err))
		}
		return nil
	}

	err := utils.WithMaxRetries(ctx, operation, guardianMaxRetries)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched signed VAA",
		zap.Stringer("chain", chain),
		zap.Uint64("sequence", sequence),
		zap.Int("length", len(raw)))
	return raw, nil
}
