package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wormhole-demo/circle-integration/internal/integration"
)

func newTestCircleClient(t *testing.T, handler http.HandlerFunc) *CircleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCircleClient(zaptest.NewLogger(t), CircleClientConfig{BaseURL: srv.URL, RequestsPerSecond: 1000})
}

func TestCircleClientFetchAttestation(t *testing.T) {
	var path string
	client := newTestCircleClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.RequestURI()
		fmt.Fprint(w, `{"messages":[{"message":"0x0102","eventNonce":"42","attestation":"0xaabb","status":"complete"}]}`)
	})

	att, err := client.FetchAttestation(context.Background(), 3, 42)
	require.NoError(t, err)
	assert.Equal(t, "/v2/messages/3?nonce=42", path)
	assert.Equal(t, []byte{0x01, 0x02}, att.Message)
	assert.Equal(t, []byte{0xaa, 0xbb}, att.Attestation)
}

func TestCircleClientNotReady(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{name: "unknown message", status: http.StatusNotFound},
		{name: "no messages", status: http.StatusOK, payload: `{"messages":[]}`},
		{name: "pending status", status: http.StatusOK, payload: `{"messages":[{"message":"0x01","attestation":"PENDING","status":"pending_confirmations"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestCircleClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.payload)
			})
			_, err := client.FetchAttestation(context.Background(), 0, 1)
			assert.ErrorIs(t, err, integration.ErrNotReady)
		})
	}
}

func TestCircleClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestCircleClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"messages":[{"message":"0x01","attestation":"0x02","status":"complete"}]}`)
	})

	att, err := client.FetchAttestation(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, att.Attestation)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCircleClientClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestCircleClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.FetchAttestation(context.Background(), 0, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, integration.ErrNotReady)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCircleClientBadHex(t *testing.T) {
	client := newTestCircleClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"messages":[{"message":"zz","attestation":"0x02","status":"complete"}]}`)
	})
	_, err := client.FetchAttestation(context.Background(), 0, 1)
	assert.Error(t, err)
}

func TestCircleClientHonoursCancellation(t *testing.T) {
	client := newTestCircleClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := client.FetchAttestation(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
