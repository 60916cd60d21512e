package control_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tos-network/shardvalidator/control"
)

func TestDecodeRoundTripsGenerateKeyPair(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"kind": "generate_keypair"})
	require.NoError(t, err)

	req, err := control.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, control.KindGenerateKeyPair, req.Kind)
}

func TestDecodeRejectsMissingKind(t *testing.T) {
	_, err := control.Decode([]byte(`{"payload":{}}`))
	require.ErrorIs(t, err, control.ErrMissingKind)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := control.Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestJSONTransportServeStopsOnCancel(t *testing.T) {
	d := &control.Dispatcher{KeyRing: newFakeKeyRing()}
	transport := &control.JSONTransport{Addr: "127.0.0.1:0", Dispatcher: d}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- transport.Serve(ctx) }()

	// Give the listener a moment to bind before asking it to shut down.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not shut down")
	}
}
